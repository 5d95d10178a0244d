package domain

import "time"

// CheckoutState описывает шаги оформления заказа от готовой корзины до
// материализованного заказа. Состояния используются в логах и метриках.
type CheckoutState string

const (
	// CheckoutStateCartReady — корзина прочитана и пригодна к оформлению.
	CheckoutStateCartReady CheckoutState = "cart_ready"
	// CheckoutStateAuthorizing — запрошена авторизация у платёжного провайдера.
	CheckoutStateAuthorizing CheckoutState = "authorizing"
	// CheckoutStateAuthorized — провайдер выдал авторизацию и client secret.
	CheckoutStateAuthorized CheckoutState = "authorized"
	// CheckoutStateMaterializing — заказ собирается из снимков позиций.
	CheckoutStateMaterializing CheckoutState = "materializing"
	// CheckoutStateComplete — заказ сохранён, побочные шаги выполнены.
	CheckoutStateComplete CheckoutState = "complete"
	// CheckoutStateAuthFailed — провайдер отклонил авторизацию; корзина не тронута.
	CheckoutStateAuthFailed CheckoutState = "auth_failed"
	// CheckoutStateMaterializeFailed — заказ не удалось сохранить; корзина не тронута.
	CheckoutStateMaterializeFailed CheckoutState = "materialize_failed"
)

// OrderItem — замороженный снимок позиции на момент оформления заказа.
// Последующие изменения каталога на снимок не влияют.
type OrderItem struct {
	ProductID string
	// Name копируется из каталога при оформлении.
	Name string
	// Qty — количество единиц товара.
	Qty int32
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
}

// ShippingAddress — адрес доставки, заполняется покупателем при оформлении.
type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

// Order агрегирует неизменяемое состояние заказа. После создания
// допускается менять только поля доставки.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	ShippingAddress ShippingAddress
	TaxMinor        int64
	ShippingMinor   int64
	TotalMinor      int64
	Currency        string
	// AuthorizationID связывает заказ с платёжной авторизацией.
	AuthorizationID   string
	PaymentCapturedAt time.Time
	Delivered         bool
	DeliveredAt       time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ItemsSubtotalMinor возвращает сумму позиций: qty * price.
func (o *Order) ItemsSubtotalMinor() int64 {
	var calc int64
	for _, item := range o.Items {
		calc += int64(item.Qty) * item.UnitPriceMinor
	}
	return calc
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrOwnerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TaxMinor < 0 || o.ShippingMinor < 0 || o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	// Итог считается только на сервере: сумма позиций плюс налог и доставка.
	if o.ItemsSubtotalMinor()+o.TaxMinor+o.ShippingMinor != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
