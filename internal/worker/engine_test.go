package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/messaging"
	"github.com/Additional-Code/kitchen/internal/worker"
)

func enabledConfig() config.Config {
	return config.Config{Messaging: config.Messaging{
		Enabled: true,
		Workers: config.Worker{Enabled: true, Concurrency: 1},
	}}
}

func TestEngineRoutesMessagesByTopic(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := messaging.NewBus()
	var alpha, beta atomic.Int32
	engine := worker.NewEngine(worker.Params{
		Client: bus,
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []worker.HandlerRegistration{
			{Topic: "beta", Handler: func(context.Context, messaging.Message) error { beta.Add(1); return nil }},
			{Topic: "alpha", Handler: func(context.Context, messaging.Message) error { alpha.Add(1); return nil }},
			{Topic: "", Handler: func(context.Context, messaging.Message) error { return errors.New("unreachable") }},
			{Topic: "gamma"},
		},
	})
	assert.Equal(t, []string{"alpha", "beta"}, engine.Topics())

	require.NoError(t, engine.Start(t.Context()))

	// The consumer subscribes asynchronously; publish until the first delivery lands.
	require.Eventually(t, func() bool {
		_ = bus.Publish(t.Context(), "alpha", nil, []byte("{}"))
		return alpha.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bus.Publish(t.Context(), "beta", nil, []byte("{}")))
	require.Eventually(t, func() bool { return beta.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.Stop(ctx))
}

func TestEngineDisabledDoesNotConsume(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := enabledConfig()
	cfg.Messaging.Workers.Enabled = false
	engine := worker.NewEngine(worker.Params{
		Client: messaging.NewBus(),
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []worker.HandlerRegistration{
			{Topic: "alpha", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})

	require.NoError(t, engine.Start(t.Context()))
	require.NoError(t, engine.Stop(t.Context()))
}

func TestDispatchIgnoresUnknownTopics(t *testing.T) {
	engine := worker.NewEngine(worker.Params{Client: messaging.NewBus(), Logger: zap.NewNop(), Config: enabledConfig()})

	assert.NoError(t, engine.Dispatch(t.Context(), messaging.Message{Topic: "nobody"}))
}

func TestDispatchRecoversHandlerPanics(t *testing.T) {
	engine := worker.NewEngine(worker.Params{
		Client: messaging.NewBus(),
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []worker.HandlerRegistration{
			{Topic: "payments", Handler: func(context.Context, messaging.Message) error { panic("nil order") }},
		},
	})

	err := engine.Dispatch(t.Context(), messaging.Message{Topic: "payments"})
	assert.ErrorContains(t, err, "panicked")
}

type flakyClient struct {
	calls atomic.Int32
}

func (f *flakyClient) Publish(context.Context, string, []byte, []byte) error { return nil }

func (f *flakyClient) Consume(ctx context.Context, _ []string, _ messaging.Handler) error {
	if f.calls.Add(1) == 1 {
		return errors.New("broker unreachable")
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestEngineReconnectsAfterConsumeFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &flakyClient{}
	engine := worker.NewEngine(worker.Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []worker.HandlerRegistration{
			{Topic: "alpha", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})
	require.NoError(t, engine.Start(t.Context()))
	require.Eventually(t, func() bool { return client.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, engine.Stop(t.Context()))
}
