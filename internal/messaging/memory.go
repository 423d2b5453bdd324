package messaging

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Bus is an in-process Client. Published messages are kept for inspection and fanned out to running
// consumers of the topic. Deliveries to a full consumer buffer are dropped.
type Bus struct {
	mu        sync.Mutex
	published []Message
	subs      []chan Message
	topics    [][]string
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{} }

func (b *Bus) Publish(ctx context.Context, topic string, key []byte, value []byte) error {
	msg := Message{Topic: topic, Key: key, Value: value, Headers: traceHeaders(ctx), Time: time.Now()}

	b.mu.Lock()
	b.published = append(b.published, msg)
	var targets []chan Message
	for i, topics := range b.topics {
		if slices.Contains(topics, topic) {
			targets = append(targets, b.subs[i])
		}
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *Bus) Consume(ctx context.Context, topics []string, handler Handler) error {
	ch := make(chan Message, 64)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.topics = append(b.topics, topics)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = slices.Delete(b.subs, i, i+1)
				b.topics = slices.Delete(b.topics, i, i+1)
				break
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			_ = handler(ctx, msg)
		}
	}
}

// Published returns a copy of everything published on topic.
func (b *Bus) Published(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, msg := range b.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}
