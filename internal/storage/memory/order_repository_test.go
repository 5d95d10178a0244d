package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newOrder(id, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:     id,
		UserID: userID,
		Items: []domain.OrderItem{
			{ProductID: "product-a", Name: "Product A", Qty: 2, UnitPriceMinor: 1000},
			{ProductID: "product-b", Name: "Product B", Qty: 1, UnitPriceMinor: 500},
		},
		TotalMinor:        2500,
		Currency:          "USD",
		PaymentCapturedAt: createdAt,
		Version:           0,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID {
		t.Fatalf("expected id %s, got %s", order.ID, stored.ID)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(stored.Items))
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_ListByUserNewestFirst(t *testing.T) {
	repo := memory.NewOrderRepository()
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"order-1", "order-2", "order-3"} {
		order := newOrder(id, "user-1", base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(order); err != nil {
			t.Fatalf("create %s failed: %v", id, err)
		}
	}
	if err := repo.Create(newOrder("order-other", "user-2", base)); err != nil {
		t.Fatalf("create foreign order failed: %v", err)
	}

	orders, err := repo.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	// Новые заказы идут первыми.
	if orders[0].ID != "order-3" || orders[2].ID != "order-1" {
		t.Fatalf("unexpected order: %s, %s, %s", orders[0].ID, orders[1].ID, orders[2].ID)
	}

	limited, err := repo.ListByUser("user-1", 2)
	if err != nil {
		t.Fatalf("list with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 orders with limit, got %d", len(limited))
	}
}

func TestOrderRepository_ListAll(t *testing.T) {
	repo := memory.NewOrderRepository()
	base := time.Now().UTC().Add(-time.Hour)

	if err := repo.Create(newOrder("order-1", "user-1", base)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newOrder("order-2", "user-2", base.Add(time.Minute))); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := repo.ListAll(0)
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != "order-2" {
		t.Fatalf("expected newest order first, got %s", orders[0].ID)
	}
}

func TestOrderRepository_Save(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	stored.Delivered = true
	stored.DeliveredAt = time.Now().UTC()
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if !updated.Delivered {
		t.Fatal("expected delivered flag set")
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order.Version = 42
	if err := repo.Save(order); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict error, got %v", err)
	}
}
