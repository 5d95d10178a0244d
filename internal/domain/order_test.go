package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с двумя позициями.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Items: []domain.OrderItem{
			{
				ProductID:      "product-a",
				Name:           "Product A",
				Qty:            2,
				UnitPriceMinor: 1000,
			},
			{
				ProductID:      "product-b",
				Name:           "Product B",
				Qty:            1,
				UnitPriceMinor: 500,
			},
		},
		TaxMinor:          100,
		ShippingMinor:     400,
		TotalMinor:        3000,
		Currency:          "USD",
		AuthorizationID:   "auth-1",
		PaymentCapturedAt: now,
		Version:           0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestOrderItemsSubtotalMinor(t *testing.T) {
	order := makeOrder()
	if got := order.ItemsSubtotalMinor(); got != 2500 {
		t.Fatalf("expected subtotal 2500, got %d", got)
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no owner",
			mut: func(o *domain.Order) {
				o.UserID = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "negative tax",
			mut: func(o *domain.Order) {
				o.TaxMinor = -1
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitPriceMinor = -5
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 9999
			},
		},
		{
			name: "item without product",
			mut: func(o *domain.Order) {
				o.Items[1].ProductID = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			if len(order.Items) == 0 {
				t.Fatal("test setup produced order without items")
			}
			// Изменяем состояние согласно сценарию.
			mutOrder := order
			tc.mut(&mutOrder)

			if len(mutOrder.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestCartValidateInvariants(t *testing.T) {
	now := time.Now().UTC()
	cart := domain.Cart{
		ID:     "cart-1",
		UserID: "user-1",
		Items: []domain.CartItem{
			{ProductID: "product-a", Qty: 2, AddedAt: now},
			{ProductID: "product-b", Qty: 1, AddedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if errs := cart.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
	if cart.IsEmpty() {
		t.Fatal("cart with items reported empty")
	}
	if got := cart.TotalQty(); got != 3 {
		t.Fatalf("expected total qty 3, got %d", got)
	}

	item, ok := cart.Item("product-a")
	if !ok || item.Qty != 2 {
		t.Fatalf("expected product-a with qty 2, got %+v (found=%v)", item, ok)
	}
	if _, ok := cart.Item("product-c"); ok {
		t.Fatal("unexpected item for unknown product")
	}

	dup := cart
	dup.Items = append([]domain.CartItem(nil), cart.Items...)
	dup.Items = append(dup.Items, domain.CartItem{ProductID: "product-a", Qty: 1})
	if len(dup.ValidateInvariants()) == 0 {
		t.Fatal("expected validation error for duplicate product line")
	}

	zero := cart
	zero.Items = []domain.CartItem{{ProductID: "product-a", Qty: 0}}
	if len(zero.ValidateInvariants()) == 0 {
		t.Fatal("expected validation error for zero quantity line")
	}
}
