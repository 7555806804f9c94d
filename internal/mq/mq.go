// Package mq carries message lifecycle events (message.created,
// message.read) to an external broker so notifiers can fan out. Delivery is
// best-effort; the API never blocks a request on the broker.
package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/messagely/apiserver/config"
)

// Event represents a broker-agnostic payload delivered to subscribers.
type Event struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes an event. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, event Event) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// NewFromConfig selects and connects the configured backend.
// "none" (or empty) yields a noop backend that drops every event.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return New(NoopBackend{}), nil
	case "rabbitmq":
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case "pubsub":
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends an event to the named topic.
func (m *MQ) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, topic, data, attrs)
}

// Subscribe consumes events from the named topic.
func (m *MQ) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return m.backend.Subscribe(ctx, topic, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

// NoopBackend drops published events and never delivers subscriptions.
// Used when event publishing is disabled.
type NoopBackend struct{}

func (NoopBackend) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}

func (NoopBackend) Subscribe(ctx context.Context, topic string, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (NoopBackend) Close() error {
	return nil
}
