package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Event type names carried in message metadata.
const (
	EventScoreUpdated       = "predict.score_updated"
	EventRecomputeCompleted = "predict.recompute_completed"
)

// ScoreUpdatedEvent is emitted when a student's stored score changes, either
// through confirmation or a staff recompute.
type ScoreUpdatedEvent struct {
	ExamID      uint      `json:"exam_id"`
	StudentID   uint      `json:"student_id"`
	SubjectCode string    `json:"subject_code,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RecomputeCompletedEvent is emitted after a staff batch recompute finishes.
// Outcomes maps each sub-step to its reported status.
type RecomputeCompletedEvent struct {
	ExamID      uint              `json:"exam_id"`
	TriggeredBy string            `json:"triggered_by"`
	Outcomes    map[string]string `json:"outcomes"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Publisher emits domain events. Implementations must be safe for concurrent
// use.
type Publisher interface {
	PublishScoreUpdated(ctx context.Context, event ScoreUpdatedEvent) error
	PublishRecomputeCompleted(ctx context.Context, event RecomputeCompletedEvent) error
	Close() error
}

// WatermillPublisher publishes events to a topic through any watermill
// backend.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaPublisher connects a watermill Kafka publisher.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*WatermillPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return NewWatermillPublisher(publisher, topic, logger), nil
}

// NewWatermillPublisher wraps an already-built watermill backend. Tests use
// this with the in-memory GoChannel pubsub.
func NewWatermillPublisher(publisher message.Publisher, topic string, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

func (p *WatermillPublisher) PublishScoreUpdated(ctx context.Context, event ScoreUpdatedEvent) error {
	return p.publish(ctx, EventScoreUpdated, event)
}

func (p *WatermillPublisher) PublishRecomputeCompleted(ctx context.Context, event RecomputeCompletedEvent) error {
	return p.publish(ctx, EventRecomputeCompleted, event)
}

func (p *WatermillPublisher) publish(ctx context.Context, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set("event_type", eventType)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NoopPublisher drops every event, used when Kafka is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishScoreUpdated(context.Context, ScoreUpdatedEvent) error { return nil }
func (NoopPublisher) PublishRecomputeCompleted(context.Context, RecomputeCompletedEvent) error {
	return nil
}
func (NoopPublisher) Close() error { return nil }
