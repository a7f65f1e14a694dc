package events

import (
	"context"

	"libris/internal/domain"
	"libris/pkg/kafka"
	"libris/pkg/logger"
)

// Publisher emits domain events after the owning transaction has
// committed. Implementations must never fail the caller's request:
// delivery is best effort and failures are logged.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

// Publish sends events in order, keyed by aggregate ID so that events
// for one book or patron land on one partition.
func (p *kafkaPublisher) Publish(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		msg := kafka.NewMessage().
			WithKey(event.AggregateID()).
			WithValue(event).
			WithEventType(event.EventType()).
			WithSource(p.source).
			Build()

		if err := p.producer.Publish(ctx, msg); err != nil {
			p.log.Error("failed to publish event",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err)
		}
	}
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. Used when
// event publishing is disabled.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(ctx context.Context, events ...domain.Event) {}
