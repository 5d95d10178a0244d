package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// UserRepository — справочник пользователей для локальной разработки и тестов.
// Помимо domain.UserRepository предоставляет Put для сидирования записей.
type UserRepository struct {
	mu    sync.RWMutex
	items map[string]domain.User
}

// NewUserRepository возвращает in-memory реализацию UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		items: make(map[string]domain.User),
	}
}

// Put добавляет или обновляет запись пользователя.
func (r *UserRepository) Put(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[user.ID] = user
}

func (r *UserRepository) Get(id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.items[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepository) List() ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.User, 0, len(r.items))
	for _, user := range r.items {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
