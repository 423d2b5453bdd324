package messaging

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
)

// kafkaClient shares one writer. Every Consume call opens its own group reader, so publish-only
// processes never join the consumer group.
type kafkaClient struct {
	cfg    config.Messaging
	writer *kafka.Writer
	retry  Backoff
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Messaging, logger *zap.Logger) *kafkaClient {
	k := &kafkaClient{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			Logger:                 kafka.LoggerFunc(logger.Sugar().Debugf),
			ErrorLogger:            kafka.LoggerFunc(logger.Sugar().Warnf),
		},
		retry:  Backoff{Initial: cfg.Retry.Initial, Max: cfg.Retry.Max},
		logger: logger,
	}
	lc.Append(fx.StopHook(k.writer.Close))
	return k
}

func (k *kafkaClient) Publish(ctx context.Context, topic string, key []byte, value []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Headers: lo.MapToSlice(traceHeaders(ctx), func(name, v string) kafka.Header {
			return kafka.Header{Key: name, Value: []byte(v)}
		}),
	})
}

func (k *kafkaClient) newReader(topics []string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.cfg.Kafka.Brokers,
		GroupID:        k.cfg.ConsumerGroup,
		GroupTopics:    topics,
		MinBytes:       k.cfg.Kafka.MinBytes,
		MaxBytes:       k.cfg.Kafka.MaxBytes,
		CommitInterval: k.cfg.Kafka.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  k.cfg.Kafka.ConnectTimeout,
			ClientID: k.cfg.Kafka.ClientID,
		},
	})
}

// fetcher is the part of *kafka.Reader the consume loop needs.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consume hands every message to handler in partition order and commits it once handler accepts it.
func (k *kafkaClient) Consume(ctx context.Context, topics []string, handler Handler) error {
	reader := k.newReader(topics)
	defer func() {
		if err := reader.Close(); err != nil {
			k.logger.Warn("closing kafka reader", zap.Error(err))
		}
	}()
	return k.consume(ctx, reader, topics, handler)
}

func (k *kafkaClient) consume(ctx context.Context, r fetcher, topics []string, handler Handler) error {
	fetchBackoff := k.retry
	for {
		raw, err := r.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			k.logger.Error("kafka fetch failed", zap.Strings("topics", topics), zap.Error(err))
			if err := fetchBackoff.Wait(ctx); err != nil {
				return err
			}
			continue
		}
		fetchBackoff.Reset()

		if err := k.handle(ctx, raw, handler); err != nil {
			return err
		}
		if err := r.CommitMessages(ctx, raw); err != nil {
			k.logger.Warn("kafka commit failed", zap.Int64("offset", raw.Offset), zap.Error(err))
		}
	}
}

// handle retries handler on one message until it succeeds or ctx ends. Offsets are committed per
// partition, so moving on to a later message would commit past a rejected one.
func (k *kafkaClient) handle(ctx context.Context, raw kafka.Message, handler Handler) error {
	msg := fromKafka(raw)
	backoff := k.retry
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		k.logger.Error("message rejected; retrying",
			zap.String("topic", raw.Topic),
			zap.Int("partition", raw.Partition),
			zap.Int64("offset", raw.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := backoff.Wait(ctx); err != nil {
			return err
		}
	}
}

// fromKafka copies the payload; kafka-go reuses its buffers between fetches.
func fromKafka(m kafka.Message) Message {
	msg := Message{
		Topic:  m.Topic,
		Key:    append([]byte(nil), m.Key...),
		Value:  append([]byte(nil), m.Value...),
		Offset: m.Offset,
		Time:   m.Time,
	}
	if len(m.Headers) > 0 {
		msg.Headers = lo.SliceToMap(m.Headers, func(h kafka.Header) (string, string) {
			return h.Key, string(h.Value)
		})
	}
	return msg
}
