// Package eventbus implements domain.EventBus with Go channels for
// in-process fanout between components.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/utils/log"
)

type ChannelEventBus struct {
	topics map[string]chan domain.Event
	mu     sync.RWMutex
	closed bool
}

func NewChannelEventBus() *ChannelEventBus {
	return &ChannelEventBus{
		topics: make(map[string]chan domain.Event),
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// Publish sends an event to a specific topic and routing key. A full
// topic channel is an error rather than a block: publishers must never
// stall on a slow subscriber. The send happens under the lock so Close
// cannot close the channel between lookup and send.
func (b *ChannelEventBus) Publish(ctx context.Context, topic string, routingKey string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}
	channel := b.topic(topic, routingKey)

	ev := domain.Event{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    payload,
		Timestamp:  time.Now(),
	}

	select {
	case channel <- ev:
		log.WithCtx(ctx).Debug("Event published",
			zap.String("topic", topic),
			zap.String("routing_key", routingKey),
			zap.Int("payload_size", len(payload)))
		return nil
	default:
		return fmt.Errorf("topic channel is full: %s:%s", topic, routingKey)
	}
}

// Subscribe listens for events on a specific topic and routing key.
func (b *ChannelEventBus) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	channel := b.topic(topic, routingKey)
	log.WithCtx(ctx).Info("Subscribed to topic", zap.String("topic", topic), zap.String("routing_key", routingKey))
	return channel, nil
}

// topic returns the channel for topic:routingKey, creating it if
// needed. Callers must hold b.mu.
func (b *ChannelEventBus) topic(topic, routingKey string) chan domain.Event {
	key := makeKey(topic, routingKey)
	channel, exists := b.topics[key]
	if !exists {
		channel = make(chan domain.Event, 100)
		b.topics[key] = channel
	}
	return channel
}

// Close closes the bus and all topic channels.
func (b *ChannelEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, channel := range b.topics {
		close(channel)
	}
	b.topics = make(map[string]chan domain.Event)

	log.WithCtx(context.Background()).Info("Event bus closed")
	return nil
}

var _ domain.EventBus = (*ChannelEventBus)(nil)
