package domain

import "time"

// Authorization — результат обращения к платёжному провайдеру: резерв
// суммы и client secret, который клиент использует для подтверждения.
type Authorization struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	CreatedAt    time.Time
}

// Validate проверяет корректность полей авторизации.
func (a *Authorization) Validate() []error {
	var errs []error

	if a.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if a.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}

	return errs
}
