package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

const defaultOrdersLimit = 50

// OrdersHandler отдаёт историю заказов и админские операции над заказами.
type OrdersHandler struct {
	orders   domain.OrderRepository
	checkout *checkout.Service
	logger   *log.Entry
}

func NewOrdersHandler(orders domain.OrderRepository, service *checkout.Service, logger *log.Entry) *OrdersHandler {
	if logger == nil {
		logger = log.New().WithField("component", "api.orders")
	}
	return &OrdersHandler{orders: orders, checkout: service, logger: logger}
}

// ListMine — GET /orders. История заказов пользователя от новых к старым.
func (h *OrdersHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	orders, err := h.orders.ListByUser(identity.UserID, limitParam(r, defaultOrdersLimit))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponses(orders))
}

// ListAll — GET /admin/orders. Все заказы витрины от новых к старым.
func (h *OrdersHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(limitParam(r, defaultOrdersLimit))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponses(orders))
}

// MarkDelivered — PATCH /admin/orders/{orderID}/delivered. Идемпотентна:
// повторная пометка уже доставленного заказа отвечает его текущим состоянием.
func (h *OrdersHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.MarkDelivered(chi.URLParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order))
	}
	return result
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
