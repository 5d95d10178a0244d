package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockAuthority — конфигурируемая заглушка PaymentAuthority для тестов.
type MockAuthority struct {
	Authorization domain.Authorization
	Err           error
	ConfirmErr    error
	ReleaseErr    error

	Calls           int
	ConfirmCalls    int
	LastAmountMinor int64
	LastCurrency    string
	LastConfirmedID string
	Released        []string
}

// NewMockAuthority возвращает mock с успешным сценарием по умолчанию.
func NewMockAuthority() *MockAuthority {
	id := uuid.NewString()
	return &MockAuthority{
		Authorization: domain.Authorization{
			ID:           "auth_" + id,
			ClientSecret: "auth_" + id + "_secret",
		},
	}
}

// CreateAuthorization возвращает заранее настроенный результат и считает вызовы.
func (m *MockAuthority) CreateAuthorization(amountMinor int64, currency string) (domain.Authorization, error) {
	m.Calls++
	m.LastAmountMinor = amountMinor
	m.LastCurrency = currency

	if m.Err != nil {
		return domain.Authorization{}, m.Err
	}

	auth := m.Authorization
	auth.AmountMinor = amountMinor
	auth.Currency = currency
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now().UTC()
	}
	return auth, nil
}

// ConfirmAuthorization подтверждает любую непустую авторизацию,
// если не настроен ConfirmErr.
func (m *MockAuthority) ConfirmAuthorization(authorizationID string) error {
	m.ConfirmCalls++
	m.LastConfirmedID = authorizationID

	if authorizationID == "" {
		return domain.ErrAuthorizationRequired
	}
	return m.ConfirmErr
}

// ReleaseAuthorization запоминает отменённые авторизации.
func (m *MockAuthority) ReleaseAuthorization(authorizationID string) error {
	if m.ReleaseErr != nil {
		return m.ReleaseErr
	}
	m.Released = append(m.Released, authorizationID)
	return nil
}

var _ domain.PaymentAuthority = (*MockAuthority)(nil)
