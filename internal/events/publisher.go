// Package events publishes document lifecycle transitions to Kafka for
// downstream consumers (notification fan-out, external audit sinks).
// All methods are safe to call on a nil *Publisher.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TransitionEvent is the wire form of a document lifecycle transition.
type TransitionEvent struct {
	DocumentID uuid.UUID `json:"document_id"`
	Code       string    `json:"code"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	VersionNo  *int      `json:"version_no,omitempty"`
	ActorID    uuid.UUID `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher writes transition events to a Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		logger: logger,
	}
}

// PublishTransition emits one event keyed by document ID. Publish failures
// are logged and swallowed: the database transaction is the source of truth.
func (p *Publisher) PublishTransition(ctx context.Context, ev TransitionEvent) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to marshal transition event", zap.Error(err))
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.DocumentID.String()),
		Value: payload,
	})
	if err != nil {
		p.logger.Warn("failed to publish transition event",
			zap.String("document_id", ev.DocumentID.String()),
			zap.String("to_status", ev.ToStatus),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
