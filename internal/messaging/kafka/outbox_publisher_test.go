package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":"order-123"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "order",
		AggregateID:   "order-234",
		EventType:     "order.delivered",
		Payload:       []byte(`{"order_id":"order-234"}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_RoutesReviewToCatalogTopic(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents).(*OutboxTopicPublisher)
	if !publisher.routing {
		t.Fatal("outbox publisher must route by aggregate type")
	}

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-4",
		AggregateType: "review",
		AggregateID:   "review-42",
		EventType:     "review.created",
		Payload:       []byte(`{"review_id":"review-42"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTopicForAggregate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		aggregate string
		want      string
	}{
		{"order", TopicOrderEvents},
		{"review", TopicCatalogEvents},
		{"product", TopicCatalogEvents},
		{"unknown", "fallback-topic"},
		{"", "fallback-topic"},
	}
	for _, tc := range cases {
		if got := TopicForAggregate(tc.aggregate, "fallback-topic"); got != tc.want {
			t.Errorf("TopicForAggregate(%q) = %q, want %q", tc.aggregate, got, tc.want)
		}
	}
}

func TestDLQPublisherKeepsFixedTopic(t *testing.T) {
	t.Parallel()

	publisher := NewDLQPublisher(nil).(*OutboxTopicPublisher)
	if publisher.routing {
		t.Fatal("dlq publisher must not route by aggregate type")
	}
	if publisher.defaultTopic != TopicDeadLetterQueue {
		t.Fatalf("unexpected dlq topic: %s", publisher.defaultTopic)
	}
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}
