package messaging

import (
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/kitchen/internal/config"
)

type settlement struct {
	acked, nacked, requeue bool
}

func (s *settlement) Ack(uint64, bool) error {
	s.acked = true
	return nil
}

func (s *settlement) Nack(_ uint64, _ bool, requeue bool) error {
	s.nacked, s.requeue = true, requeue
	return nil
}

func (s *settlement) Reject(_ uint64, requeue bool) error {
	s.nacked, s.requeue = true, requeue
	return nil
}

func TestSettleDeadLettersRejectedDeliveries(t *testing.T) {
	accepted := &settlement{}
	require.NoError(t, settle(amqp.Delivery{Acknowledger: accepted}, nil))
	assert.Equal(t, settlement{acked: true}, *accepted)

	// Every rejection takes the dead-letter route to the retry queue, however often it was
	// delivered before.
	for _, redelivered := range []bool{false, true} {
		rejected := &settlement{}
		require.NoError(t, settle(amqp.Delivery{Acknowledger: rejected, Redelivered: redelivered}, errors.New("db down")))
		assert.Equal(t, settlement{nacked: true}, *rejected)
	}
}

func TestRetryTopologyLoopsBackToWorkQueue(t *testing.T) {
	cfg := config.RabbitMQ{Queue: "kitchen-worker", RetryDelay: 5 * time.Second}

	assert.Equal(t, "kitchen-worker.retry", retryQueue(cfg))
	assert.Equal(t, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": "kitchen-worker.retry",
	}, workQueueArgs(cfg))
	assert.Equal(t, amqp.Table{
		"x-message-ttl":             int64(5000),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": "kitchen-worker",
	}, retryQueueArgs(cfg))

	// Both tables must be encodable by the client.
	require.NoError(t, workQueueArgs(cfg).Validate())
	require.NoError(t, retryQueueArgs(cfg).Validate())
}

func TestRetriedDeliveryKeepsItsTopic(t *testing.T) {
	const queue = "kitchen-worker"

	fresh := amqp.Delivery{RoutingKey: "payments.confirmed", MessageId: "A-1", Body: []byte(`{}`)}
	msg := fromDelivery(fresh, queue)
	assert.Equal(t, "payments.confirmed", msg.Topic)
	assert.Equal(t, "A-1", string(msg.Key))
	assert.Zero(t, rejections(fresh, queue))

	retried := amqp.Delivery{
		RoutingKey: queue,
		Headers: amqp.Table{
			"traceparent": "00-abc-def-01",
			"x-death": []any{
				amqp.Table{"queue": queue + ".retry", "reason": "expired", "count": int64(2), "routing-keys": []any{queue + ".retry"}},
				amqp.Table{"queue": queue, "reason": "rejected", "count": int64(2), "routing-keys": []any{"payments.confirmed"}},
			},
		},
	}
	msg = fromDelivery(retried, queue)
	assert.Equal(t, "payments.confirmed", msg.Topic)
	assert.Equal(t, map[string]string{"traceparent": "00-abc-def-01"}, msg.Headers)
	assert.Equal(t, int64(2), rejections(retried, queue))

	assert.Equal(t, queue, originalTopic(amqp.Delivery{RoutingKey: queue}, queue))
}
