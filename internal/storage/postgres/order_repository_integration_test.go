package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", "user-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", "user-1", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.UserID != order1.UserID || got.TotalMinor != order1.TotalMinor {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Items) != len(order1.Items) {
		t.Fatalf("unexpected items count: got=%d want=%d", len(got.Items), len(order1.Items))
	}
	if got.ShippingAddress.City != order1.ShippingAddress.City {
		t.Fatalf("unexpected shipping address: %+v", got.ShippingAddress)
	}

	listed, err := repo.ListByUser("user-1", 1)
	if err != nil {
		t.Fatalf("list by user with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("list by user without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
	if all[0].ID != order2.ID {
		t.Fatalf("expected newest order first, got %s", all[0].ID)
	}

	everything, err := repo.ListAll(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(everything) != 2 {
		t.Fatalf("expected 2 orders in admin list, got %d", len(everything))
	}

	got.Delivered = true
	got.DeliveredAt = now
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if !updated.Delivered {
		t.Fatal("expected delivered flag after save")
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("order-errors", "user-2", now)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Save(base); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(base); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on duplicate create, got %v", err)
	}

	stale := base
	stale.Delivered = true
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on stale save, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleOrder(id, userID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ProductID:      id + "-product-1",
			Name:           "Sample product",
			Qty:            2,
			UnitPriceMinor: 150,
		},
	}

	return domain.Order{
		ID:     id,
		UserID: userID,
		Items:  items,
		ShippingAddress: domain.ShippingAddress{
			Address:    "1 Main st",
			City:       "Springfield",
			PostalCode: "00001",
			Country:    "US",
		},
		TotalMinor:        300,
		Currency:          "USD",
		AuthorizationID:   id + "-auth",
		PaymentCapturedAt: createdAt,
		Version:           0,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}
