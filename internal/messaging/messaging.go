// Package messaging moves order events out of the service and payment confirmations in, over Kafka,
// RabbitMQ or an in-process bus.
package messaging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
)

// Message is one delivery. Headers carry the publisher's trace context.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes a delivery. Returning an error asks the broker to redeliver.
type Handler func(context.Context, Message) error

// Client publishes and consumes on named topics.
type Client interface {
	// Publish blocks until the broker has accepted the message. Messages sharing a key keep their order.
	Publish(ctx context.Context, topic string, key []byte, value []byte) error
	// Consume blocks delivering messages of topics to handler until ctx ends.
	Consume(ctx context.Context, topics []string, handler Handler) error
}

// Module provides the Client selected by MESSAGING_DRIVER.
var Module = fx.Provide(NewClient)

// NewClient returns a client that discards publishes and idles consumers when messaging is off.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	log := logger.Named("messaging")
	switch cfg.Messaging.Driver {
	case "noop":
		log.Info("messaging disabled")
		return discard{}, nil
	case "kafka":
		return newKafkaClient(lc, cfg.Messaging, log), nil
	case "rabbitmq":
		return newRabbitClient(lc, cfg.Messaging.RabbitMQ, log), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

type discard struct{}

func (discard) Publish(context.Context, string, []byte, []byte) error { return nil }

func (discard) Consume(ctx context.Context, _ []string, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
