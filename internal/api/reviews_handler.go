package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	reviewsvc "github.com/vladislavdragonenkov/storefront/internal/service/review"
)

// ReviewsHandler — отзывы покупателей о товарах.
type ReviewsHandler struct {
	reviews *reviewsvc.Service
	logger  *log.Entry
}

func NewReviewsHandler(reviews *reviewsvc.Service, logger *log.Entry) *ReviewsHandler {
	if logger == nil {
		logger = log.New().WithField("component", "api.reviews")
	}
	return &ReviewsHandler{reviews: reviews, logger: logger}
}

type createReviewRequest struct {
	Rating  int32  `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int32     `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReviewResponse(review domain.Review) reviewResponse {
	return reviewResponse{
		ID:        review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}

// Create — POST /products/{productID}/reviews. Повторный отзыв того же
// пользователя обновляется на месте.
func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	review, err := h.reviews.Upsert(identity.UserID, chi.URLParam(r, "productID"), req.Rating, req.Comment)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, toReviewResponse(review))
}

// List — GET /products/{productID}/reviews, от новых к старым.
func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListForProduct(chi.URLParam(r, "productID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	result := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		result = append(result, toReviewResponse(review))
	}

	respondJSON(w, http.StatusOK, result)
}
