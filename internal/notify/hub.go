package notify

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultBufferSize = 16

// Event представляет событие для доставки подключенным клиентам.
type Event struct {
	Name    string
	Payload []byte
}

// Subscription представляет одно живое подключение пользователя.
type Subscription struct {
	userID string
	events chan Event
}

// UserID возвращает владельца подписки.
func (s *Subscription) UserID() string {
	return s.userID
}

// Events возвращает канал событий подписки.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Hub ведёт реестр подключенных клиентов и рассылает события best-effort.
// Медленные подписчики не блокируют рассылку: события для них отбрасываются.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	logger      *log.Entry
	bufferSize  int
}

// NewHub создаёт новый hub подключений.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		logger:      log.WithField("component", "notify-hub"),
		bufferSize:  defaultBufferSize,
	}
}

// Attach регистрирует подключение пользователя и возвращает подписку.
func (h *Hub) Attach(userID string) *Subscription {
	sub := &Subscription{
		userID: userID,
		events: make(chan Event, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[*Subscription]struct{})
	}
	h.subscribers[userID][sub] = struct{}{}

	h.logger.WithField("user_id", userID).Debug("subscriber attached")
	return sub
}

// Detach снимает подписку. Повторный Detach безопасен.
func (h *Hub) Detach(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.userID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subscribers, sub.userID)
	}
	close(sub.events)

	h.logger.WithField("user_id", sub.userID).Debug("subscriber detached")
}

// Broadcast рассылает событие всем подключенным клиентам.
func (h *Hub) Broadcast(event string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, subs := range h.subscribers {
		for sub := range subs {
			h.send(userID, sub, Event{Name: event, Payload: payload})
		}
	}
}

// Notify доставляет событие подключениям одного пользователя.
func (h *Hub) Notify(userID, event string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[userID] {
		h.send(userID, sub, Event{Name: event, Payload: payload})
	}
}

func (h *Hub) send(userID string, sub *Subscription, event Event) {
	select {
	case sub.events <- event:
	default:
		h.logger.WithFields(log.Fields{
			"user_id": userID,
			"event":   event.Name,
		}).Warn("subscriber buffer full, event dropped")
	}
}

// Online возвращает отсортированный список подключенных пользователей.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.subscribers))
	for userID := range h.subscribers {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// IsOnline сообщает, есть ли у пользователя живые подключения.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[userID]) > 0
}

var _ domain.Broadcaster = (*Hub)(nil)
