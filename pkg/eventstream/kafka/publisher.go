// Package kafka publishes context events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/loopworkco/rewind/pkg/eventstream"
)

// Config holds the Kafka connection settings for the publisher.
type Config struct {
	Brokers []string
	Topic   string
	Source  eventstream.EventSource
}

// Publisher writes context events to Kafka. Messages are keyed by
// session ID so one session's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
	source eventstream.EventSource
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		source: cfg.Source,
	}
}

// PublishContextStored fills in event envelope defaults and writes the
// event to the configured topic.
func (p *Publisher) PublishContextStored(ctx context.Context, event *eventstream.ContextStoredEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	if event.SchemaVersion == 0 {
		event.SchemaVersion = eventstream.SchemaVersionV1
	}
	if event.EventType == "" {
		event.EventType = eventstream.EventTypeContextStored
	}
	if event.EventID == "" {
		event.EventID = "evt_" + uuid.New().String()[:12]
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	if event.Source == (eventstream.EventSource{}) {
		event.Source = p.source
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling context event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publishing context event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
