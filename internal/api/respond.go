package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

// ErrorResponse — единый формат тела ошибки для всех обработчиков.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondDomainError переводит ошибки предметной области в HTTP-статусы.
// Сбой персистентности никогда не выдаётся как успех: клиент получает 500
// и может безопасно повторить запрос.
func respondDomainError(w http.ResponseWriter, logger *log.Entry, err error) {
	var replayed *checkout.ReplayedError
	if errors.As(err, &replayed) {
		respondError(w, replayed.StatusCode, "replayed_failure", replayed.Message)
		return
	}

	switch {
	case domain.IsIdempotencyConflict(err):
		respondError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, domain.ErrTotalMismatch):
		respondError(w, http.StatusUnprocessableEntity, "total_mismatch", err.Error())
	case errors.Is(err, domain.ErrAuthorizationNotConfirmed):
		respondError(w, http.StatusPaymentRequired, "authorization_not_confirmed", err.Error())
	case domain.IsPaymentProvider(err):
		respondError(w, http.StatusBadGateway, "payment_provider_error", err.Error())
	case domain.IsNotFound(err):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case isClientInput(err):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrOrderVersionConflict):
		respondError(w, http.StatusConflict, "version_conflict", err.Error())
	default:
		logger.WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error, try again")
	}
}

func isClientInput(err error) bool {
	return errors.Is(err, domain.ErrOwnerRequired) ||
		errors.Is(err, domain.ErrProductIDRequired) ||
		errors.Is(err, domain.ErrQuantityInvalid) ||
		errors.Is(err, domain.ErrCartEmpty) ||
		errors.Is(err, domain.ErrRatingInvalid) ||
		errors.Is(err, domain.ErrCurrencyRequired) ||
		errors.Is(err, domain.ErrAmountNegative) ||
		errors.Is(err, domain.ErrIdempotencyKeyRequired) ||
		errors.Is(err, domain.ErrAuthorizationRequired)
}
