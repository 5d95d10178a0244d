package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory — каталог товаров для локальной разработки и тестов.
type productRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Product
	reviews map[string][]domain.Review // productID -> отзывы
}

// NewProductRepository возвращает in-memory реализацию ProductRepository.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items:   make(map[string]domain.Product),
		reviews: make(map[string][]domain.Review),
	}
}

func (r *productRepositoryInMemory) Create(product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return domain.ErrProductIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.items[product.ID] = product
	return nil
}

func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *productRepositoryInMemory) GetMany(ids []string) (map[string]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.items[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

// DecrementStock уменьшает остаток, не опускаясь ниже нуля.
func (r *productRepositoryInMemory) DecrementStock(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQuantityInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}

	product.QuantityOnHand -= qty
	if product.QuantityOnHand <= 0 {
		product.QuantityOnHand = 0
		product.InStock = false
	}
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return nil
}

func (r *productRepositoryInMemory) UpsertReview(review domain.Review) (domain.Review, error) {
	if errs := review.Validate(); len(errs) > 0 {
		return domain.Review{}, errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[review.ProductID]; !ok {
		return domain.Review{}, domain.ErrProductNotFound
	}

	now := time.Now().UTC()
	list := r.reviews[review.ProductID]
	for i := range list {
		if list[i].UserID == review.UserID {
			// Повторный отзыв обновляется на месте.
			list[i].Rating = review.Rating
			list[i].Comment = review.Comment
			list[i].UpdatedAt = now
			return list[i], nil
		}
	}

	review.ID = uuid.NewString()
	review.CreatedAt = now
	review.UpdatedAt = now
	r.reviews[review.ProductID] = append(list, review)
	return review, nil
}

func (r *productRepositoryInMemory) ListReviews(productID string) ([]domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.items[productID]; !ok {
		return nil, domain.ErrProductNotFound
	}

	result := append([]domain.Review(nil), r.reviews[productID]...)
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
