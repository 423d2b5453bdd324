package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
)

const exchangeType = "topic"

// rabbitClient publishes to a topic exchange using the topic as routing key and consumes from one
// durable queue bound to every requested topic.
type rabbitClient struct {
	cfg    config.RabbitMQ
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

func newRabbitClient(lc fx.Lifecycle, cfg config.RabbitMQ, logger *zap.Logger) *rabbitClient {
	client := &rabbitClient{cfg: cfg, logger: logger}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.connect(ctx)
		},
		OnStop: func(context.Context) error {
			logger.Info("closing rabbitmq client")

			return client.close()
		},
	})

	return client
}

func (r *rabbitClient) connect(ctx context.Context) error {
	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= 5; attempt++ {
		conn, err = amqp.Dial(r.cfg.URL)
		if err == nil {
			break
		}
		r.logger.Warn("rabbitmq dial failed", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(r.cfg.Exchange, exchangeType, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	r.mu.Lock()
	r.conn, r.pub = conn, ch
	r.mu.Unlock()

	r.logger.Info("rabbitmq connected", zap.String("exchange", r.cfg.Exchange))
	return nil
}

func (r *rabbitClient) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn, r.pub = nil, nil
	return err
}

func (r *rabbitClient) Publish(ctx context.Context, topic string, key []byte, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pub == nil {
		return errors.New("rabbitmq not connected")
	}
	return r.pub.PublishWithContext(ctx, r.cfg.Exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    string(key),
		Timestamp:    time.Now().UTC(),
		Headers:      toTable(traceHeaders(ctx)),
		Body:         value,
	})
}

// Consume reads the work queue. A rejected delivery is dead-lettered into a retry queue whose TTL
// routes it back to the work queue, so it is retried after RetryDelay and never dropped.
func (r *rabbitClient) Consume(ctx context.Context, topics []string, handler Handler) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return errors.New("rabbitmq not connected")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := ch.QueueDeclare(retryQueue(r.cfg), true, false, false, false, retryQueueArgs(r.cfg)); err != nil {
		return fmt.Errorf("declare retry queue: %w", err)
	}
	q, err := ch.QueueDeclare(r.cfg.Queue, true, false, false, false, workQueueArgs(r.cfg))
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, topic := range topics {
		if err := ch.QueueBind(q.Name, topic, r.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", topic, err)
		}
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := fromDelivery(d, r.cfg.Queue)
			err := handler(ctx, msg)
			if err != nil {
				r.logger.Error("message handler failed; parked for retry",
					zap.String("topic", msg.Topic),
					zap.Int64("rejections", rejections(d, r.cfg.Queue)),
					zap.Duration("retry_in", r.cfg.RetryDelay),
					zap.Error(err),
				)
			}
			if err := settle(d, err); err != nil {
				r.logger.Warn("settling delivery failed", zap.String("topic", msg.Topic), zap.Error(err))
			}
		}
	}
}

// settle acks an accepted delivery. A rejected one is nacked without requeue, which dead-letters it
// into the retry queue.
func settle(d amqp.Delivery, handlerErr error) error {
	if handlerErr == nil {
		return d.Ack(false)
	}
	return d.Nack(false, false)
}

func retryQueue(cfg config.RabbitMQ) string {
	return cfg.Queue + ".retry"
}

func workQueueArgs(cfg config.RabbitMQ) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": retryQueue(cfg),
	}
}

func retryQueueArgs(cfg config.RabbitMQ) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             cfg.RetryDelay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.Queue,
	}
}

func fromDelivery(d amqp.Delivery, queue string) Message {
	return Message{
		Topic:   originalTopic(d, queue),
		Key:     []byte(d.MessageId),
		Value:   d.Body,
		Headers: fromTable(d.Headers),
		Time:    d.Timestamp,
	}
}

// originalTopic recovers the publish routing key of a delivery that came back from the retry queue
// addressed to the work queue itself. The broker keeps it in the x-death entry for the rejection.
func originalTopic(d amqp.Delivery, queue string) string {
	if d.RoutingKey != queue {
		return d.RoutingKey
	}
	if death, ok := rejectedDeath(d, queue); ok {
		if keys, ok := death["routing-keys"].([]any); ok && len(keys) > 0 {
			if key, ok := keys[0].(string); ok {
				return key
			}
		}
	}
	return d.RoutingKey
}

// rejections counts how often the work queue has rejected this delivery before.
func rejections(d amqp.Delivery, queue string) int64 {
	death, ok := rejectedDeath(d, queue)
	if !ok {
		return 0
	}
	count, _ := death["count"].(int64)
	return count
}

func rejectedDeath(d amqp.Delivery, queue string) (amqp.Table, bool) {
	deaths, _ := d.Headers["x-death"].([]any)
	for _, raw := range deaths {
		death, ok := raw.(amqp.Table)
		if ok && death["queue"] == queue && death["reason"] == "rejected" {
			return death, true
		}
	}
	return nil, false
}

func toTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	table := make(amqp.Table, len(headers))
	for k, v := range headers {
		table[k] = v
	}
	return table
}

// fromTable keeps only string headers; trace context is always written as strings.
func fromTable(table amqp.Table) map[string]string {
	out := make(map[string]string, len(table))
	for k, v := range table {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
