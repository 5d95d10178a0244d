package app

import (
	"context"
	"testing"
)

func TestNewDependencies_MemoryDriver(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDependencies failed: %v", err)
	}
	defer deps.Close()

	if deps.Carts == nil || deps.Products == nil || deps.Orders == nil {
		t.Fatal("expected storage repositories to be initialized")
	}
	if deps.Outbox == nil || deps.Idem == nil {
		t.Fatal("expected outbox and idempotency repositories to be initialized")
	}
	if deps.Users == nil || deps.Analytics == nil {
		t.Fatal("expected user and analytics repositories to be initialized")
	}
	if deps.Hub == nil {
		t.Fatal("expected notification hub to be initialized")
	}
	if deps.Authority == nil {
		t.Fatal("expected payment authority to be initialized")
	}
	if deps.CartService == nil || deps.CheckoutService == nil || deps.ReviewService == nil {
		t.Fatal("expected services to be initialized")
	}
	if deps.KafkaProducer != nil || deps.Publisher != nil {
		t.Fatal("expected kafka to stay disabled without brokers")
	}
}

func TestNewDependencies_UnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	if _, err := NewDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}
