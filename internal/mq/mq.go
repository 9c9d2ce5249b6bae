package mq

import (
	"context"
	"fmt"

	"github.com/htverse/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Open connects the backend selected by cfg.Backend. It returns a nil
// Backend when event publishing is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendRabbitMQ:
		return NewRabbitMQClient(cfg.RabbitMQ)
	case config.BackendPubSub:
		return NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
}
