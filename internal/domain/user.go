package domain

import "time"

// Role задаёт уровень доступа пользователя. Проверка прав идёт по роли,
// а не по сравнению адреса почты с константой.
type Role string

const (
	// RoleUser — обычный покупатель: доступ только к своим корзине и заказам.
	RoleUser Role = "user"
	// RoleAdmin — администратор витрины: списки заказов, аналитика, доставка.
	RoleAdmin Role = "admin"
)

// Valid проверяет, что роль относится к поддерживаемым значениям.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// User — запись справочника пользователей. Аутентификация выполняется
// внешним сервисом; здесь хранится только то, что нужно админ-панели.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}
