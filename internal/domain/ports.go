package domain

import "time"

// PaymentAuthority описывает взаимодействие с платёжным провайдером.
// Сумма авторизации всегда считается на сервере из текущей корзины.
type PaymentAuthority interface {
	// CreateAuthorization резервирует сумму и возвращает client secret.
	// Любая ошибка провайдера оборачивается в ErrPaymentProvider.
	CreateAuthorization(amountMinor int64, currency string) (Authorization, error)
	// ConfirmAuthorization проверяет у провайдера, что авторизация
	// существует и подтверждена. Неподтверждённая авторизация даёт
	// ErrAuthorizationNotConfirmed, недоступность провайдера ErrPaymentProvider.
	ConfirmAuthorization(authorizationID string) error
	// ReleaseAuthorization снимает резерв средств. Уже отменённая или
	// отсутствующая авторизация не считается ошибкой.
	ReleaseAuthorization(authorizationID string) error
}

// Broadcaster рассылает события подключённым наблюдателям (админ-панель).
// Доставка best-effort: медленный или отключившийся получатель события теряет.
type Broadcaster interface {
	Broadcast(event string, payload []byte)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	// Delete освобождает ключ, чтобы повторный запрос выполнился заново.
	// Отсутствие записи не является ошибкой.
	Delete(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
