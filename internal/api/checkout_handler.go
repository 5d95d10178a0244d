package api

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

const headerIdempotencyKey = "Idempotency-Key"

// CheckoutHandler проводит оформление заказа: авторизация платежа и
// материализация заказа из корзины.
type CheckoutHandler struct {
	checkout *checkout.Service
	logger   *log.Entry
}

func NewCheckoutHandler(service *checkout.Service, logger *log.Entry) *CheckoutHandler {
	if logger == nil {
		logger = log.New().WithField("component", "api.checkout")
	}
	return &CheckoutHandler{checkout: service, logger: logger}
}

type shippingAddressDTO struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type finalizeRequestDTO struct {
	AuthorizationID string             `json:"authorization_id"`
	TotalMinor      int64              `json:"total_minor"`
	TaxMinor        int64              `json:"tax_minor"`
	ShippingMinor   int64              `json:"shipping_minor"`
	Currency        string             `json:"currency"`
	ShippingAddress shippingAddressDTO `json:"shipping_address"`
}

type orderItemResponse struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	LineTotalMinor int64  `json:"line_total_minor"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Items           []orderItemResponse `json:"items"`
	ShippingAddress shippingAddressDTO  `json:"shipping_address"`
	TaxMinor        int64               `json:"tax_minor"`
	ShippingMinor   int64               `json:"shipping_minor"`
	TotalMinor      int64               `json:"total_minor"`
	Currency        string              `json:"currency"`
	AuthorizationID string              `json:"authorization_id"`
	Delivered       bool                `json:"delivered"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
			LineTotalMinor: int64(item.Qty) * item.UnitPriceMinor,
		})
	}

	resp := orderResponse{
		ID:     order.ID,
		UserID: order.UserID,
		Items:  items,
		ShippingAddress: shippingAddressDTO{
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		TaxMinor:        order.TaxMinor,
		ShippingMinor:   order.ShippingMinor,
		TotalMinor:      order.TotalMinor,
		Currency:        order.Currency,
		AuthorizationID: order.AuthorizationID,
		Delivered:       order.Delivered,
		CreatedAt:       order.CreatedAt,
	}
	if order.Delivered {
		deliveredAt := order.DeliveredAt
		resp.DeliveredAt = &deliveredAt
	}
	return resp
}

// Begin — POST /checkout/begin. Сумма авторизации считается на сервере
// из текущей корзины, корзина при этом не меняется.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	result, err := h.checkout.Begin(identity.UserID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Finalize — POST /checkout/finalize. Ключ идемпотентности передаётся в
// заголовке Idempotency-Key; повтор с тем же ключом воспроизводит
// предыдущий исход без побочных эффектов.
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req finalizeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.checkout.Finalize(checkout.FinalizeRequest{
		UserID:             identity.UserID,
		IdempotencyKey:     r.Header.Get(headerIdempotencyKey),
		AuthorizationID:    req.AuthorizationID,
		DeclaredTotalMinor: req.TotalMinor,
		TaxMinor:           req.TaxMinor,
		ShippingMinor:      req.ShippingMinor,
		Currency:           req.Currency,
		ShippingAddress: domain.ShippingAddress{
			Address:    req.ShippingAddress.Address,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}
