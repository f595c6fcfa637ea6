package domain

import (
	"context"
	"time"
)

// EventBus defines in-process publish/subscribe between components.
type EventBus interface {
	// Publish sends an event to a specific topic with a routing key.
	Publish(ctx context.Context, topic string, routingKey string, payload []byte) error

	// Subscribe listens for events on a specific topic and routing key.
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Event, error)

	// Close closes the bus and all topic channels.
	Close() error
}

// Event is one message received from the bus.
type Event struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// InsightsUpdatedEvent announces that new coaching insights were
// ingested and seed recommendations may be stale.
type InsightsUpdatedEvent struct {
	InsightID string    `json:"insight_id"`
	SourceID  string    `json:"source_id"`
	Timestamp time.Time `json:"timestamp"`
}
