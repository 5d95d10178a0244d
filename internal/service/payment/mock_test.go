package payment

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestMockAuthority(t *testing.T) {
	mock := NewMockAuthority()
	if mock == nil {
		t.Fatal("expected non-nil mock")
	}

	auth, err := mock.CreateAuthorization(1500, "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.ID == "" || auth.ClientSecret == "" {
		t.Fatalf("expected generated id and client secret, got %+v", auth)
	}
	if auth.AmountMinor != 1500 || auth.Currency != "USD" {
		t.Fatalf("amount and currency should be echoed back, got %+v", auth)
	}
	if auth.CreatedAt.IsZero() {
		t.Fatal("created_at should be set")
	}

	mock.Err = errors.New("provider unavailable")
	if _, err := mock.CreateAuthorization(100, "EUR"); err == nil {
		t.Fatal("expected configured error")
	}

	if mock.Calls != 2 {
		t.Fatalf("unexpected call counter: %d", mock.Calls)
	}
	if mock.LastAmountMinor != 100 || mock.LastCurrency != "EUR" {
		t.Fatalf("unexpected last call args: %d %s", mock.LastAmountMinor, mock.LastCurrency)
	}
}

func TestMockAuthorityImplementsPort(t *testing.T) {
	var authority domain.PaymentAuthority = NewMockAuthority()

	if _, err := authority.CreateAuthorization(0, "USD"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
