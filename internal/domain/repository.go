package domain

import "time"

// CartRepository описывает требования к хранилищу корзин.
// Все мутации возвращают итоговое состояние корзины, чтобы вызывающий код
// не делал повторного чтения.
type CartRepository interface {
	// Get возвращает корзину пользователя или ErrCartNotFound, если её нет.
	Get(userID string) (Cart, error)
	// AddItem добавляет qty единиц товара; корзина создаётся лениво,
	// существующая позиция увеличивается на qty.
	AddItem(userID, productID string, qty int32) (Cart, error)
	// AdjustQuantity атомарно меняет количество позиции на delta.
	// Падение количества ниже единицы удаляет позицию целиком.
	AdjustQuantity(userID, productID string, delta int32) (Cart, error)
	// RemoveItem удаляет позицию независимо от количества.
	RemoveItem(userID, productID string) (Cart, error)
	// Clear опустошает корзину; отсутствие корзины не является ошибкой.
	Clear(userID string) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByUser возвращает заказы пользователя от новых к старым.
	ListByUser(userID string, limit int) ([]Order, error)
	// ListAll возвращает все заказы от новых к старым (админ-панель).
	ListAll(limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// ProductRepository описывает доступ к каталогу товаров.
type ProductRepository interface {
	// Create добавляет товар в каталог.
	Create(product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// GetMany возвращает найденные товары по списку идентификаторов;
	// отсутствующие просто не попадают в результат.
	GetMany(ids []string) (map[string]Product, error)
	// DecrementStock уменьшает остаток не ниже нуля. Нулевой остаток
	// снимает флаг наличия.
	DecrementStock(id string, qty int32) error
	// UpsertReview сохраняет отзыв; повторный отзыв того же пользователя
	// на тот же товар обновляется на месте.
	UpsertReview(review Review) (Review, error)
	// ListReviews возвращает отзывы о товаре от новых к старым.
	ListReviews(productID string) ([]Review, error)
}

// UserRepository — справочник пользователей для админ-панели.
type UserRepository interface {
	Get(id string) (User, error)
	List() ([]User, error)
}

// AnalyticsOverview — сводка витрины для дашборда.
type AnalyticsOverview struct {
	RevenueMinor   int64
	OrdersCount    int
	CustomersCount int
}

// DailyOrders — количество заказов и выручка за один день.
type DailyOrders struct {
	Day          time.Time
	OrdersCount  int
	RevenueMinor int64
}

// TopSeller — товар с наибольшим числом проданных единиц.
type TopSeller struct {
	ProductID    string
	Name         string
	UnitsSold    int64
	RevenueMinor int64
}

// CategorySales — продажи, сгруппированные по категории каталога.
// Позиции заказов, чьи товары удалены из каталога, в сводку не входят.
type CategorySales struct {
	Category     string
	UnitsSold    int64
	RevenueMinor int64
}

// MonthlySales — помесячная сводка продаж.
type MonthlySales struct {
	Month        time.Month
	Year         int
	OrdersCount  int
	RevenueMinor int64
}

// AnalyticsRepository считает агрегаты по заказам для админ-панели.
type AnalyticsRepository interface {
	Overview() (AnalyticsOverview, error)
	OrdersPerDay(days int) ([]DailyOrders, error)
	TopSellers(limit int) ([]TopSeller, error)
	SalesDistribution() ([]CategorySales, error)
	MonthlySales(year int) ([]MonthlySales, error)
}
