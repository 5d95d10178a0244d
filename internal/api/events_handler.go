package api

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/notify"
)

// EventsHandler транслирует события hub подключённым клиентам через
// server-sent events. Подписка живёт до разрыва соединения; её наличие
// определяет флаг online в списке покупателей.
type EventsHandler struct {
	hub    *notify.Hub
	logger *log.Entry
}

func NewEventsHandler(hub *notify.Hub, logger *log.Entry) *EventsHandler {
	if logger == nil {
		logger = log.New().WithField("component", "api.events")
	}
	return &EventsHandler{hub: hub, logger: logger}
}

// Stream — GET /events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	sub := h.hub.Attach(identity.UserID)
	defer h.hub.Detach(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Первое событие подтверждает подписку, чтобы клиент не ждал молча.
	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	h.logger.WithField("user_id", identity.UserID).Info("event stream attached")

	for {
		select {
		case <-r.Context().Done():
			h.logger.WithField("user_id", identity.UserID).Info("event stream detached")
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Payload)
			flusher.Flush()
		}
	}
}
