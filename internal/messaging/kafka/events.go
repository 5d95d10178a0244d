package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderDelivered EventType = "order.delivered"

	// Catalog события
	EventTypeReviewCreated EventType = "review.created"
	EventTypeStockDepleted EventType = "stock.depleted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicCatalogEvents   = "storefront.catalog.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Kafka headers маршрутизации событий витрины
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	UserID     string                 `json:"user_id"`
	TotalMinor int64                  `json:"total_minor"`
	Currency   string                 `json:"currency"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ReviewEvent представляет событие отзыва на товар
type ReviewEvent struct {
	EventType EventType `json:"event_type"`
	ReviewID  string    `json:"review_id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int32     `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, userID string, totalMinor int64, currency string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		UserID:     userID,
		TotalMinor: totalMinor,
		Currency:   currency,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// NewReviewEvent создает новое событие отзыва
func NewReviewEvent(eventType EventType, reviewID, productID, userID string, rating int32) *ReviewEvent {
	return &ReviewEvent{
		EventType: eventType,
		ReviewID:  reviewID,
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Timestamp: time.Now(),
	}
}
