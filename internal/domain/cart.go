package domain

import "time"

// CartItem представляет одну позицию корзины. Количество всегда >= 1:
// позиция с нулевым количеством удаляется из корзины целиком.
type CartItem struct {
	ProductID string
	Qty       int32
	AddedAt   time.Time
}

// Cart агрегирует позиции покупателя. На одного пользователя приходится
// ровно одна корзина; на один товар — не более одной позиции.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item возвращает позицию по товару и признак её наличия.
func (c *Cart) Item(productID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// IsEmpty сообщает, что корзина не содержит ни одной позиции.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalQty возвращает суммарное количество единиц по всем позициям.
func (c *Cart) TotalQty() int32 {
	var total int32
	for _, item := range c.Items {
		total += item.Qty
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты корзины и возвращает список замечаний.
func (c *Cart) ValidateInvariants() []error {
	var errs []error

	if c.UserID == "" {
		errs = append(errs, ErrOwnerRequired)
	}

	seen := make(map[string]struct{}, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
			continue
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if _, dup := seen[item.ProductID]; dup {
			errs = append(errs, ErrCartItemDuplicate)
		}
		seen[item.ProductID] = struct{}{}
	}

	return errs
}
