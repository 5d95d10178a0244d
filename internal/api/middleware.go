package api

import (
	"context"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Заголовки, через которые доверенный auth-шлюз передаёт личность запроса.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity — личность запроса, установленная внешним auth-сервисом.
// Ядро проверяет только владение ресурсами и роль.
type Identity struct {
	UserID string
	Role   domain.Role
}

// Authenticate читает личность из заголовков и отклоняет запросы без неё.
// Роль по умолчанию — обычный покупатель.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
			return
		}

		role := domain.Role(r.Header.Get(headerUserRole))
		if role == "" {
			role = domain.RoleUser
		}
		if !role.Valid() {
			respondError(w, http.StatusUnauthorized, "invalid_role", "unknown user role")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, Identity{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin пропускает только администраторов витрины.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok || identity.Role != domain.RoleAdmin {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}
