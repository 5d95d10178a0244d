package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func seedProduct(t *testing.T, repo domain.ProductRepository, id string, priceMinor int64, onHand int32) {
	t.Helper()
	err := repo.Create(domain.Product{
		ID:             id,
		Name:           "Product " + id,
		PriceMinor:     priceMinor,
		QuantityOnHand: onHand,
		InStock:        onHand > 0,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func TestProductRepository_GetMany(t *testing.T) {
	repo := memory.NewProductRepository()
	seedProduct(t, repo, "a", 1000, 10)
	seedProduct(t, repo, "b", 500, 5)

	products, err := repo.GetMany([]string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("get many failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	// Отсутствующий товар просто не попадает в результат.
	if _, ok := products["missing"]; ok {
		t.Fatal("unexpected entry for missing product")
	}
}

func TestProductRepository_DecrementStock(t *testing.T) {
	repo := memory.NewProductRepository()
	seedProduct(t, repo, "a", 1000, 3)

	if err := repo.DecrementStock("a", 2); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	product, err := repo.Get("a")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if product.QuantityOnHand != 1 || !product.InStock {
		t.Fatalf("unexpected stock state: %+v", product)
	}

	// Остаток не опускается ниже нуля, наличие снимается.
	if err := repo.DecrementStock("a", 5); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	product, _ = repo.Get("a")
	if product.QuantityOnHand != 0 || product.InStock {
		t.Fatalf("expected floor at zero with in_stock=false, got %+v", product)
	}

	if err := repo.DecrementStock("missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_UpsertReview(t *testing.T) {
	repo := memory.NewProductRepository()
	seedProduct(t, repo, "a", 1000, 10)

	first, err := repo.UpsertReview(domain.Review{ProductID: "a", UserID: "user-1", Rating: 4, Comment: "good"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated review id")
	}

	// Повторный отзыв того же пользователя обновляется на месте.
	second, err := repo.UpsertReview(domain.Review{ProductID: "a", UserID: "user-1", Rating: 2, Comment: "changed my mind"})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.ID != first.ID || second.Rating != 2 {
		t.Fatalf("expected in-place update, got %+v", second)
	}

	if _, err := repo.UpsertReview(domain.Review{ProductID: "a", UserID: "user-2", Rating: 5}); err != nil {
		t.Fatalf("upsert for second user failed: %v", err)
	}

	reviews, err := repo.ListReviews("a")
	if err != nil {
		t.Fatalf("list reviews failed: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviews))
	}

	if _, err := repo.UpsertReview(domain.Review{ProductID: "a", UserID: "user-3", Rating: 9}); !errors.Is(err, domain.ErrRatingInvalid) {
		t.Fatalf("expected ErrRatingInvalid, got %v", err)
	}
	if _, err := repo.UpsertReview(domain.Review{ProductID: "missing", UserID: "user-1", Rating: 3}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
