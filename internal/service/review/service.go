package review

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const maxCommentLength = 2000

// Service управляет отзывами о товарах: на пользователя приходится не
// более одного отзыва на товар, повторная отправка обновляет его.
type Service struct {
	products domain.ProductRepository
	outbox   domain.OutboxRepository
	hub      domain.Broadcaster
	logger   *log.Entry
}

// NewService создаёт сервис отзывов. Outbox и hub могут быть nil:
// события тогда не публикуются.
func NewService(products domain.ProductRepository, outbox domain.OutboxRepository, hub domain.Broadcaster, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "review")
	}
	return &Service{
		products: products,
		outbox:   outbox,
		hub:      hub,
		logger:   logger,
	}
}

// Upsert сохраняет отзыв пользователя о товаре. Товар должен существовать
// в каталоге. Успешное сохранение рассылает событие review.created.
func (s *Service) Upsert(userID, productID string, rating int32, comment string) (domain.Review, error) {
	review := domain.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	if errs := review.Validate(); len(errs) > 0 {
		return domain.Review{}, errs[0]
	}
	review.Comment = truncateComment(review.Comment, maxCommentLength)

	if _, err := s.products.Get(productID); err != nil {
		return domain.Review{}, err
	}

	saved, err := s.products.UpsertReview(review)
	if err != nil {
		return domain.Review{}, err
	}

	s.logger.WithFields(log.Fields{
		"review_id":  saved.ID,
		"product_id": saved.ProductID,
		"user_id":    saved.UserID,
		"rating":     saved.Rating,
	}).Info("review saved")

	s.emitReviewEvent(saved)

	return saved, nil
}

// truncateComment обрезает комментарий до limit байт, не разрывая
// многобайтовые руны на границе.
func truncateComment(comment string, limit int) string {
	if len(comment) <= limit {
		return comment
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(comment[cut]) {
		cut--
	}
	return comment[:cut]
}

// ListForProduct возвращает отзывы о товаре от новых к старым.
func (s *Service) ListForProduct(productID string) ([]domain.Review, error) {
	if productID == "" {
		return nil, domain.ErrProductIDRequired
	}
	return s.products.ListReviews(productID)
}

func (s *Service) emitReviewEvent(review domain.Review) {
	payload, err := json.Marshal(struct {
		ReviewID  string `json:"review_id"`
		ProductID string `json:"product_id"`
		UserID    string `json:"user_id"`
		Rating    int32  `json:"rating"`
		Timestamp string `json:"ts"`
	}{
		ReviewID:  review.ID,
		ProductID: review.ProductID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal review event")
		return
	}

	if s.outbox != nil {
		if _, err := s.outbox.Enqueue(domain.OutboxMessage{
			AggregateType: "review",
			AggregateID:   review.ID,
			EventType:     "review.created",
			Payload:       payload,
		}); err != nil {
			s.logger.WithError(err).Warn("failed to enqueue review event")
		}
	}

	if s.hub != nil {
		s.hub.Broadcast("review.created", payload)
	}
}
