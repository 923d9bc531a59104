// Package events publishes domain events about claims and reviews.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/editorhub/editors/pkg/config"
	"github.com/editorhub/editors/pkg/logging"
)

// Event types
const (
	ProjectClaimed = "project.claimed"
	EditSubmitted  = "edit.submitted"
	EditReviewed   = "edit.reviewed"
)

// Event is one published fact. Events for the same project share a key.
type Event struct {
	Type      string                 `json:"type"`
	ProjectID int64                  `json:"project_id"`
	UserID    int64                  `json:"user_id"`
	At        time.Time              `json:"at"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// New returns a Kafka publisher, or Nop when no brokers are configured
func New(cfg *config.EventsConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		logging.GetLogger().Info("Event publishing disabled")
		return Nop{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	logging.GetLogger().Info("Kafka event publisher initialized",
		zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &KafkaPublisher{writer: w, logger: logging.WithComponent("events")}
}

// Publish writes one event keyed by project ID
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ProjectID, 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
