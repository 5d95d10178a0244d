package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultCurrency = "USD"
	idempotencyTTL  = 24 * time.Hour

	finalizeMethod = "checkout.finalize"
)

// BeginResult возвращается клиенту для подтверждения платежа.
type BeginResult struct {
	ClientSecret   string `json:"client_secret"`
	IdempotencyKey string `json:"idempotency_key"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
}

// FinalizeRequest — параметры материализации заказа из корзины.
type FinalizeRequest struct {
	UserID             string                 `json:"user_id"`
	IdempotencyKey     string                 `json:"-"`
	AuthorizationID    string                 `json:"authorization_id"`
	DeclaredTotalMinor int64                  `json:"total_minor"`
	TaxMinor           int64                  `json:"tax_minor"`
	ShippingMinor      int64                  `json:"shipping_minor"`
	Currency           string                 `json:"currency"`
	ShippingAddress    domain.ShippingAddress `json:"shipping_address"`
}

// ReplayedError воспроизводит исход предыдущего запроса с тем же
// idempotency-key, не выполняя обработку повторно.
type ReplayedError struct {
	StatusCode int
	Message    string
}

func (e *ReplayedError) Error() string {
	return e.Message
}

// Service материализует заказы из корзины: авторизация платежа,
// снимок позиций, пересчёт итога и публикация событий.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	orders   domain.OrderRepository
	payments domain.PaymentAuthority
	outbox   domain.OutboxRepository
	idemRepo domain.IdempotencyRepository
	hub      domain.Broadcaster
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
	currency string
}

// NewService конструирует сервис оформления заказа. Outbox, hub и
// idempotency-репозиторий могут быть nil: соответствующие шаги
// пропускаются.
func NewService(
	carts domain.CartRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	payments domain.PaymentAuthority,
	outbox domain.OutboxRepository,
	idemRepo domain.IdempotencyRepository,
	hub domain.Broadcaster,
	logger *log.Entry,
) *Service {
	service := NewServiceWithoutMetrics(carts, products, orders, payments, outbox, idemRepo, hub, logger)
	service.metrics = metrics.NewCheckoutMetrics()
	return service
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	carts domain.CartRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	payments domain.PaymentAuthority,
	outbox domain.OutboxRepository,
	idemRepo domain.IdempotencyRepository,
	hub domain.Broadcaster,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Service{
		carts:    carts,
		products: products,
		orders:   orders,
		payments: payments,
		outbox:   outbox,
		idemRepo: idemRepo,
		hub:      hub,
		logger:   logger,
		currency: defaultCurrency,
	}
}

// SetCurrency меняет валюту авторизаций (по умолчанию USD).
func (s *Service) SetCurrency(currency string) {
	if currency != "" {
		s.currency = currency
	}
}

// Begin читает корзину, считает сумму по текущим ценам каталога и
// запрашивает авторизацию у платёжного провайдера. Корзина не меняется.
func (s *Service) Begin(userID string) (BeginResult, error) {
	if userID == "" {
		return BeginResult{}, domain.ErrOwnerRequired
	}

	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer s.metrics.RecordCheckoutInFlightFinished()
	}

	cart, err := s.carts.Get(userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return BeginResult{}, domain.ErrCartEmpty
	}
	if err != nil {
		return BeginResult{}, fmt.Errorf("read cart: %w", err)
	}
	if cart.IsEmpty() {
		return BeginResult{}, domain.ErrCartEmpty
	}

	s.logger.WithFields(log.Fields{
		"user_id": userID,
		"state":   domain.CheckoutStateCartReady,
	}).Debug("cart ready for checkout")

	_, subtotal, err := s.snapshotItems(cart)
	if err != nil {
		return BeginResult{}, err
	}

	s.logger.WithFields(log.Fields{
		"user_id": userID,
		"amount":  subtotal,
		"state":   domain.CheckoutStateAuthorizing,
	}).Debug("requesting payment authorization")

	authStart := time.Now()
	auth, err := s.payments.CreateAuthorization(subtotal, s.currency)
	if s.metrics != nil {
		s.metrics.RecordStageDuration("authorize", time.Since(authStart))
	}
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"state":   domain.CheckoutStateAuthFailed,
		}).Warn("payment authorization failed")
		if s.metrics != nil {
			s.metrics.RecordCheckoutAuthFailed()
		}
		if domain.IsPaymentProvider(err) {
			return BeginResult{}, err
		}
		return BeginResult{}, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}

	s.logger.WithFields(log.Fields{
		"user_id":          userID,
		"authorization_id": auth.ID,
		"state":            domain.CheckoutStateAuthorized,
	}).Info("payment authorized")
	if s.metrics != nil {
		s.metrics.RecordCheckoutDuration(time.Since(start))
	}

	return BeginResult{
		ClientSecret:   auth.ClientSecret,
		IdempotencyKey: deriveIdempotencyKey(auth.ID),
		AmountMinor:    subtotal,
		Currency:       s.currency,
	}, nil
}

// Finalize материализует заказ. Операция идемпотентна по ключу: повторный
// вызов с тем же ключом возвращает кешированный исход, а не второй заказ.
func (s *Service) Finalize(req FinalizeRequest) (domain.Order, error) {
	if req.UserID == "" {
		return domain.Order{}, domain.ErrOwnerRequired
	}
	if req.AuthorizationID == "" {
		return domain.Order{}, domain.ErrAuthorizationRequired
	}
	if req.Currency == "" {
		req.Currency = s.currency
	}

	if s.idemRepo == nil {
		return s.finalizeInternal(req)
	}

	if req.IdempotencyKey == "" {
		return domain.Order{}, domain.ErrIdempotencyKeyRequired
	}

	reqHash, err := buildRequestHash(finalizeMethod, req)
	if err != nil {
		s.logger.WithError(err).Warn("failed to build idempotency request hash")
		return domain.Order{}, fmt.Errorf("build idempotency request hash: %w", err)
	}

	record, err := s.idemRepo.CreateProcessing(req.IdempotencyKey, reqHash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		return s.replayIdempotency(err, record)
	}

	order, runErr := s.finalizeInternal(req)
	if runErr != nil {
		// Кешируется только детерминированный исход. Сбой хранилища или
		// провайдера освобождает ключ, иначе повтор с тем же ключом
		// воспроизводил бы временную ошибку вместо новой попытки.
		if isRetryableFailure(runErr) {
			s.releaseIdempotencyKey(req.IdempotencyKey)
		} else {
			s.cacheFailure(req.IdempotencyKey, runErr)
			s.releaseAuthorization(req.AuthorizationID)
		}
		return domain.Order{}, runErr
	}

	if data, marshalErr := json.Marshal(order); marshalErr != nil {
		s.logger.WithError(marshalErr).WithField("idempotency_key", req.IdempotencyKey).Warn("failed to encode idempotent success response")
	} else if cacheErr := s.idemRepo.MarkDone(req.IdempotencyKey, data, http.StatusCreated); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("idempotency_key", req.IdempotencyKey).Warn("failed to store idempotent success response")
	}

	return order, nil
}

func (s *Service) finalizeInternal(req FinalizeRequest) (domain.Order, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutInFlightStarted()
		defer s.metrics.RecordCheckoutInFlightFinished()
	}

	cart, err := s.carts.Get(req.UserID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.Order{}, domain.ErrCartEmpty
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("read cart: %w", err)
	}
	if cart.IsEmpty() {
		return domain.Order{}, domain.ErrCartEmpty
	}

	s.logger.WithFields(log.Fields{
		"user_id": req.UserID,
		"state":   domain.CheckoutStateMaterializing,
	}).Debug("materializing order from cart")

	snapshots, subtotal, err := s.snapshotItems(cart)
	if err != nil {
		return domain.Order{}, err
	}

	total := subtotal + req.TaxMinor + req.ShippingMinor
	if req.DeclaredTotalMinor != total {
		s.logger.WithFields(log.Fields{
			"user_id":  req.UserID,
			"declared": req.DeclaredTotalMinor,
			"actual":   total,
		}).Warn("declared total does not match server-side recalculation")
		return domain.Order{}, domain.ErrTotalMismatch
	}

	// Авторизацию из тела запроса перепроверяем у провайдера: клиент
	// мог прислать чужой или ещё не подтверждённый идентификатор.
	confirmStart := time.Now()
	confirmErr := s.payments.ConfirmAuthorization(req.AuthorizationID)
	if s.metrics != nil {
		s.metrics.RecordStageDuration("confirm", time.Since(confirmStart))
	}
	if confirmErr != nil {
		s.logger.WithError(confirmErr).WithFields(log.Fields{
			"user_id":          req.UserID,
			"authorization_id": req.AuthorizationID,
			"state":            domain.CheckoutStateAuthFailed,
		}).Warn("payment authorization confirmation failed")
		if s.metrics != nil {
			s.metrics.RecordCheckoutAuthFailed()
		}
		if errors.Is(confirmErr, domain.ErrAuthorizationNotConfirmed) || domain.IsPaymentProvider(confirmErr) {
			return domain.Order{}, confirmErr
		}
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, confirmErr)
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Items:             snapshots,
		ShippingAddress:   req.ShippingAddress,
		TaxMinor:          req.TaxMinor,
		ShippingMinor:     req.ShippingMinor,
		TotalMinor:        total,
		Currency:          req.Currency,
		AuthorizationID:   req.AuthorizationID,
		PaymentCapturedAt: now,
		Version:           0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	materializeStart := time.Now()
	if err := s.orders.Create(order); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id": req.UserID,
			"state":   domain.CheckoutStateMaterializeFailed,
		}).Error("failed to persist order")
		if s.metrics != nil {
			s.metrics.RecordCheckoutMaterializeFailed()
		}
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordStageDuration("materialize", time.Since(materializeStart))
	}

	s.emitOrderEvent(order, "order.created")

	// Побочные шаги после фиксации заказа выполняются best-effort:
	// их провал оставляет устаревшую корзину, но не отменяет заказ.
	s.runCompensations(order)

	s.logger.WithFields(log.Fields{
		"user_id":  req.UserID,
		"order_id": order.ID,
		"total":    order.TotalMinor,
		"state":    domain.CheckoutStateComplete,
	}).Info("checkout complete")
	if s.metrics != nil {
		s.metrics.RecordCheckoutCompleted()
		s.metrics.RecordCheckoutDuration(time.Since(start))
	}

	return order, nil
}

func (s *Service) snapshotItems(cart domain.Cart) ([]domain.OrderItem, int64, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	catalog, err := s.products.GetMany(ids)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog lookup: %w", err)
	}

	snapshots := make([]domain.OrderItem, 0, len(cart.Items))
	var subtotal int64
	for _, item := range cart.Items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		}

		snapshots = append(snapshots, domain.OrderItem{
			ProductID:      product.ID,
			Name:           product.Name,
			Qty:            item.Qty,
			UnitPriceMinor: product.PriceMinor,
		})
		subtotal += product.PriceMinor * int64(item.Qty)
	}

	return snapshots, subtotal, nil
}

func (s *Service) runCompensations(order domain.Order) {
	partial := false

	if err := s.carts.Clear(order.UserID); err != nil {
		partial = true
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id":  order.UserID,
			"order_id": order.ID,
		}).Warn("cart clear after order commit failed, cart left stale")
	}

	for _, item := range order.Items {
		if err := s.products.DecrementStock(item.ProductID, item.Qty); err != nil {
			partial = true
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("stock decrement after order commit failed")
		}
	}

	if partial && s.metrics != nil {
		s.metrics.RecordPartialCompletion()
	}
}

// MarkDelivered помечает заказ доставленным. Конфликт версий при
// параллельном обновлении разрешается перечитыванием и повтором.
func (s *Service) MarkDelivered(orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if order.Delivered {
			return order, nil
		}

		now := time.Now().UTC()
		order.Delivered = true
		order.DeliveredAt = now
		order.UpdatedAt = now
		prevVersion := order.Version

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := s.orders.Get(order.ID)
				if loadErr != nil {
					return domain.Order{}, loadErr
				}
				order = fresh

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, err
		}

		order.Version = prevVersion + 1
		s.emitOrderEvent(order, "order.delivered")
		return order, nil
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

func (s *Service) emitOrderEvent(order domain.Order, eventType string) {
	payload, err := json.Marshal(map[string]any{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"total_minor": order.TotalMinor,
		"currency":    order.Currency,
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("marshal order event failed")
		return
	}

	if s.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     eventType,
			Payload:       payload,
		}
		if _, err := s.outbox.Enqueue(msg); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Error("enqueue order event failed")
		} else if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(eventType, payload)
		if s.metrics != nil {
			s.metrics.RecordNotifyEvent()
		}
	}
}

func (s *Service) replayIdempotency(createErr error, record domain.IdempotencyRecord) (domain.Order, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return domain.Order{}, domain.ErrIdempotencyHashMismatch
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			var order domain.Order
			if err := json.Unmarshal(record.ResponseBody, &order); err != nil {
				s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
				return domain.Order{}, fmt.Errorf("decode cached idempotency response: %w", err)
			}
			return order, nil
		case domain.IdempotencyStatusProcessing:
			return domain.Order{}, domain.ErrIdempotencyKeyAlreadyExists
		case domain.IdempotencyStatusFailed:
			return domain.Order{}, decodeCachedFailure(record)
		default:
			return domain.Order{}, fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return domain.Order{}, fmt.Errorf("initialize idempotency record: %w", createErr)
	}
}

type failurePayload struct {
	Message string `json:"message"`
}

// isRetryableFailure отделяет временные сбои (хранилище, провайдер,
// неподтверждённая авторизация) от финальных исходов вроде расхождения
// суммы: первые не должны навсегда занимать idempotency-key.
func isRetryableFailure(err error) bool {
	if errors.Is(err, domain.ErrAuthorizationNotConfirmed) {
		return true
	}
	return httpStatusFor(err) >= http.StatusInternalServerError
}

func (s *Service) releaseIdempotencyKey(key string) {
	if err := s.idemRepo.Delete(key); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to release idempotency key after transient failure")
	}
}

func (s *Service) releaseAuthorization(authorizationID string) {
	if authorizationID == "" {
		return
	}
	if err := s.payments.ReleaseAuthorization(authorizationID); err != nil {
		s.logger.WithError(err).WithField("authorization_id", authorizationID).Warn("failed to release payment authorization")
	}
}

func (s *Service) cacheFailure(key string, runErr error) {
	payload, err := json.Marshal(failurePayload{Message: runErr.Error()})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}

	if err := s.idemRepo.MarkFailed(key, payload, httpStatusFor(runErr)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeCachedFailure(record domain.IdempotencyRecord) error {
	message := "previous request with the same idempotency key failed"
	if len(record.ResponseBody) > 0 {
		var payload failurePayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil && payload.Message != "" {
			message = payload.Message
		}
	}

	status := record.HTTPStatus
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}

	return &ReplayedError{StatusCode: status, Message: message}
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCartEmpty),
		errors.Is(err, domain.ErrOwnerRequired),
		errors.Is(err, domain.ErrAuthorizationRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthorizationNotConfirmed):
		return http.StatusPaymentRequired
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTotalMismatch):
		return http.StatusUnprocessableEntity
	case domain.IsPaymentProvider(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func deriveIdempotencyKey(authorizationID string) string {
	sum := sha256.Sum256([]byte("checkout:" + authorizationID))
	return "chk_" + hex.EncodeToString(sum[:16])
}

func buildRequestHash(method string, req FinalizeRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	hash := sha256.New()
	hash.Write([]byte(method))
	hash.Write([]byte{0})
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil)), nil
}
