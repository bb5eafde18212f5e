// Package events publishes submission lifecycle events to the message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	wmmiddleware "github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/correlation"
	"github.com/noah-isme/sekolah-go-api/internal/observability"
)

const (
	eventSource  = "sekolah-api"
	eventVersion = "1.0"
)

// Publisher emits submission events to downstream consumers.
type Publisher interface {
	PublishSubmissionEvent(ctx context.Context, event SubmissionEvent) error
	Close() error
}

// WatermillPublisher adapts any watermill publisher to Publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	logger    zerolog.Logger
}

// PublisherConfig holds configuration for the Kafka publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
}

// NewKafkaPublisher builds a publisher backed by Kafka.
func NewKafkaPublisher(cfg PublisherConfig, logger zerolog.Logger) (*WatermillPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers must be provided")
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, NewLoggerAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return NewWatermillPublisher(publisher, cfg.Topic, logger), nil
}

// NewWatermillPublisher wraps an existing watermill publisher.
func NewWatermillPublisher(publisher message.Publisher, topic string, logger zerolog.Logger) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("component", "event_publisher").Logger(),
	}
}

// PublishSubmissionEvent marshals the event and publishes it on the configured topic.
func (p *WatermillPublisher) PublishSubmissionEvent(ctx context.Context, event SubmissionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = correlation.FromContext(ctx)
	}
	event.Source = eventSource
	event.Version = eventVersion

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339))
	if event.CorrelationID != "" {
		wmmiddleware.SetCorrelationID(event.CorrelationID, msg)
	}

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		observability.EventsPublished().WithLabelValues(p.topic, "error").Inc()
		p.logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("failed to publish submission event")
		return fmt.Errorf("failed to publish submission event: %w", err)
	}

	observability.EventsPublished().WithLabelValues(p.topic, "ok").Inc()
	p.logger.Debug().Str("event_id", event.ID).Str("event_type", string(event.Type)).Str("topic", p.topic).Msg("submission event published")
	return nil
}

// Close releases the underlying publisher.
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishSubmissionEvent(context.Context, SubmissionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// RecordingPublisher keeps events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []SubmissionEvent
	Err    error
}

func (r *RecordingPublisher) PublishSubmissionEvent(_ context.Context, event SubmissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *RecordingPublisher) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *RecordingPublisher) Events() []SubmissionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SubmissionEvent, len(r.events))
	copy(out, r.events)
	return out
}

var _ watermill.LoggerAdapter = (*LoggerAdapter)(nil)
