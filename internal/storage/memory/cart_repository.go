package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory хранит корзины по идентификатору пользователя.
// Все мутации выполняются под одним мьютексом, поэтому конкурентные
// изменения одной позиции не теряют обновлений.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Cart
}

// NewCartRepository возвращает in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		items: make(map[string]domain.Cart),
	}
}

func (r *cartRepositoryInMemory) Get(userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) AddItem(userID, productID string, qty int32) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)

	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return domain.Cart{}, domain.ErrProductIDRequired
	}
	if qty <= 0 {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	cart, ok := r.items[userID]
	if !ok {
		// Корзина создаётся лениво при первом добавлении.
		cart = domain.Cart{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: now,
		}
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Qty += qty
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			Qty:       qty,
			AddedAt:   now,
		})
	}

	cart.UpdatedAt = now
	r.items[userID] = cloneCart(cart)
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) AdjustQuantity(userID, productID string, delta int32) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)

	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return domain.Cart{}, domain.ErrProductIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.items[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Cart{}, domain.ErrCartItemNotFound
	}

	cart.Items[idx].Qty += delta
	if cart.Items[idx].Qty < 1 {
		// Количество ниже единицы удаляет позицию целиком.
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	}

	cart.UpdatedAt = time.Now().UTC()
	r.items[userID] = cloneCart(cart)
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) RemoveItem(userID, productID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)

	if userID == "" {
		return domain.Cart{}, domain.ErrOwnerRequired
	}
	if productID == "" {
		return domain.Cart{}, domain.ErrProductIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.items[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Cart{}, domain.ErrCartItemNotFound
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	cart.UpdatedAt = time.Now().UTC()
	r.items[userID] = cloneCart(cart)
	return cloneCart(cart), nil
}

func (r *cartRepositoryInMemory) Clear(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrOwnerRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.items[userID]
	if !ok {
		// Отсутствие корзины не ошибка: очистка идемпотентна.
		return nil
	}

	cart.Items = nil
	cart.UpdatedAt = time.Now().UTC()
	r.items[userID] = cart
	return nil
}

func cloneCart(src domain.Cart) domain.Cart {
	dst := src
	dst.Items = append([]domain.CartItem(nil), src.Items...)
	return dst
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
