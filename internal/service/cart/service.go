package cart

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductCache описывает кеш снимков каталога для read-time проекции.
type ProductCache interface {
	Get(productID string) (domain.Product, error)
	Set(product domain.Product) error
}

// ItemView — позиция корзины, обогащённая данными каталога.
type ItemView struct {
	ProductID      string    `json:"product_id"`
	Name           string    `json:"name"`
	Qty            int32     `json:"qty"`
	UnitPriceMinor int64     `json:"unit_price_minor"`
	LineTotalMinor int64     `json:"line_total_minor"`
	InStock        bool      `json:"in_stock"`
	MainImage      string    `json:"main_image,omitempty"`
	AddedAt        time.Time `json:"added_at"`
}

// View — проекция корзины для выдачи клиенту. Суммы носят
// справочный характер: итог заказа пересчитывается при checkout.
type View struct {
	UserID        string     `json:"user_id"`
	Items         []ItemView `json:"items"`
	TotalQty      int32      `json:"total_qty"`
	SubtotalMinor int64      `json:"subtotal_minor"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
}

// Service управляет корзиной пользователя. Хранилище корзины
// независимо от каталога: наличие товара проверяется при checkout,
// а не при добавлении.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	cache    ProductCache // опциональный
	logger   *log.Entry
}

// NewService создаёт сервис корзины. Кеш каталога опционален.
func NewService(carts domain.CartRepository, products domain.ProductRepository, cache ProductCache, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart-service")
	}
	return &Service{
		carts:    carts,
		products: products,
		cache:    cache,
		logger:   logger,
	}
}

// AddItem добавляет товар в корзину или увеличивает количество
// существующей позиции.
func (s *Service) AddItem(userID, productID string, qty int32) (View, error) {
	if userID == "" {
		return View{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return View{}, domain.ErrProductIDRequired
	}
	if qty <= 0 {
		return View{}, domain.ErrQuantityInvalid
	}

	cart, err := s.carts.AddItem(userID, productID, qty)
	if err != nil {
		return View{}, err
	}
	return s.project(cart), nil
}

// Increment увеличивает количество позиции на единицу.
func (s *Service) Increment(userID, productID string) (View, error) {
	return s.adjust(userID, productID, 1)
}

// Decrement уменьшает количество позиции на единицу. Позиция с
// количеством ноль удаляется из корзины.
func (s *Service) Decrement(userID, productID string) (View, error) {
	return s.adjust(userID, productID, -1)
}

func (s *Service) adjust(userID, productID string, delta int32) (View, error) {
	if userID == "" {
		return View{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return View{}, domain.ErrProductIDRequired
	}

	cart, err := s.carts.AdjustQuantity(userID, productID, delta)
	if err != nil {
		return View{}, err
	}
	return s.project(cart), nil
}

// Remove удаляет позицию из корзины целиком.
func (s *Service) Remove(userID, productID string) (View, error) {
	if userID == "" {
		return View{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return View{}, domain.ErrProductIDRequired
	}

	cart, err := s.carts.RemoveItem(userID, productID)
	if err != nil {
		return View{}, err
	}
	return s.project(cart), nil
}

// Clear опустошает корзину. Отсутствие корзины не считается ошибкой.
func (s *Service) Clear(userID string) error {
	if userID == "" {
		return domain.ErrOwnerRequired
	}
	return s.carts.Clear(userID)
}

// Get возвращает проекцию корзины. Для пользователя без корзины
// возвращается пустая проекция.
func (s *Service) Get(userID string) (View, error) {
	if userID == "" {
		return View{}, domain.ErrOwnerRequired
	}

	cart, err := s.carts.Get(userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return View{UserID: userID, Items: []ItemView{}}, nil
	}
	if err != nil {
		return View{}, err
	}
	return s.project(cart), nil
}

// project собирает read-time проекцию: позиции корзины соединяются
// со снимками каталога на момент чтения.
func (s *Service) project(cart domain.Cart) View {
	view := View{
		UserID:    cart.UserID,
		Items:     make([]ItemView, 0, len(cart.Items)),
		UpdatedAt: cart.UpdatedAt,
	}

	products := s.lookupProducts(cart)
	for _, item := range cart.Items {
		itemView := ItemView{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			AddedAt:   item.AddedAt,
		}
		if product, ok := products[item.ProductID]; ok {
			itemView.Name = product.Name
			itemView.UnitPriceMinor = product.PriceMinor
			itemView.LineTotalMinor = product.PriceMinor * int64(item.Qty)
			itemView.InStock = product.InStock
			itemView.MainImage = product.MainImage
		}

		view.Items = append(view.Items, itemView)
		view.TotalQty += item.Qty
		view.SubtotalMinor += itemView.LineTotalMinor
	}

	return view
}

func (s *Service) lookupProducts(cart domain.Cart) map[string]domain.Product {
	found := make(map[string]domain.Product, len(cart.Items))
	missing := make([]string, 0, len(cart.Items))

	for _, item := range cart.Items {
		if s.cache != nil {
			product, err := s.cache.Get(item.ProductID)
			if err == nil {
				found[item.ProductID] = product
				continue
			}
			if !errors.Is(err, domain.ErrCacheMiss) {
				s.logger.WithError(err).WithField("product_id", item.ProductID).Warn("product cache read failed")
			}
		}
		missing = append(missing, item.ProductID)
	}

	if len(missing) == 0 {
		return found
	}

	fromRepo, err := s.products.GetMany(missing)
	if err != nil {
		s.logger.WithError(err).Warn("catalog lookup failed for cart projection")
		return found
	}

	for id, product := range fromRepo {
		found[id] = product
		if s.cache != nil {
			if err := s.cache.Set(product); err != nil {
				s.logger.WithError(err).WithField("product_id", id).Warn("product cache write failed")
			}
		}
	}

	return found
}
