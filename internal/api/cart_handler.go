package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	cartsvc "github.com/vladislavdragonenkov/storefront/internal/service/cart"
)

// CartHandler обслуживает операции с корзиной текущего пользователя.
type CartHandler struct {
	carts  *cartsvc.Service
	logger *log.Entry
}

func NewCartHandler(carts *cartsvc.Service, logger *log.Entry) *CartHandler {
	if logger == nil {
		logger = log.New().WithField("component", "api.cart")
	}
	return &CartHandler{carts: carts, logger: logger}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// AddItem — POST /cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	view, err := h.carts.AddItem(identity.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

// Get — GET /cart. Отсутствующая корзина отдаётся как пустая проекция.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	view, err := h.carts.Get(identity.UserID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Increase — PUT /cart/items/{productID}/increase.
func (h *CartHandler) Increase(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	view, err := h.carts.Increment(identity.UserID, chi.URLParam(r, "productID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Decrease — PUT /cart/items/{productID}/decrease. Падение количества до
// нуля удаляет позицию целиком.
func (h *CartHandler) Decrease(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	view, err := h.carts.Decrement(identity.UserID, chi.URLParam(r, "productID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Remove — DELETE /cart/items/{productID}.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	view, err := h.carts.Remove(identity.UserID, chi.URLParam(r, "productID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Clear — DELETE /cart. Идемпотентен: повторная очистка тоже отвечает 204.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	if err := h.carts.Clear(identity.UserID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
