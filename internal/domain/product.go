package domain

import "time"

// Product — запись каталога. Ядро оформления заказов читает каталог как
// справочник: снимает имя и цену при материализации и по возможности
// уменьшает остаток.
type Product struct {
	ID             string
	Name           string
	Category       string
	PriceMinor     int64
	QuantityOnHand int32
	InStock        bool
	MainImage      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Review — отзыв покупателя о товаре. На одного пользователя приходится
// не более одного отзыва на товар; повторная отправка обновляет его.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Rating    int32
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет корректность полей отзыва.
func (r *Review) Validate() []error {
	var errs []error

	if r.UserID == "" {
		errs = append(errs, ErrOwnerRequired)
	}
	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.Rating < 1 || r.Rating > 5 {
		errs = append(errs, ErrRatingInvalid)
	}

	return errs
}
