package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka, маршрутизируя
// их по типу агрегата: заказы уходят в topic заказов, отзывы и товары —
// в каталожный topic. Неизвестные агрегаты попадают в topic по умолчанию.
type OutboxTopicPublisher struct {
	producer     *Producer
	defaultTopic string
	routing      bool
}

// NewOutboxPublisher создаёт маршрутизирующий Kafka-паблишер для
// transactional outbox.
func NewOutboxPublisher(producer *Producer, defaultTopic string) domain.OutboxPublisher {
	if defaultTopic == "" {
		defaultTopic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer:     producer,
		defaultTopic: defaultTopic,
		routing:      true,
	}
}

// NewDLQPublisher создаёт паблишер мёртвой очереди. Маршрутизация по
// агрегату отключена: недоставленные сообщения любого типа остаются
// в одном topic'е для последующего replay.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{
		producer:     producer,
		defaultTopic: TopicDeadLetterQueue,
	}
}

// TopicForAggregate выбирает topic витрины по типу агрегата.
func TopicForAggregate(aggregateType, fallback string) string {
	switch aggregateType {
	case "order":
		return TopicOrderEvents
	case "review", "product":
		return TopicCatalogEvents
	default:
		return fallback
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	topic := p.defaultTopic
	if p.routing {
		topic = TopicForAggregate(event.AggregateType, p.defaultTopic)
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	headers := map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
	}

	return p.producer.PublishEventWithHeaders(topic, key, headers, envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
