// Package worker runs the message handlers registered by domain packages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/messaging"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// HandlerRegistration binds one topic to its handler. Domain packages contribute these to the
// "worker.handlers" value group.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs a fixed pool of consumers over every registered topic.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	enabled  bool
	workers  int
	handlers map[string]messaging.Handler

	stop func()
	done chan struct{}
}

// Module starts the engine with the application and drains it on shutdown.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, e *Engine) {
		lc.Append(fx.Hook{OnStart: e.Start, OnStop: e.Stop})
	}),
)

// NewEngine drops registrations without a topic or handler. A later registration for the same
// topic wins.
func NewEngine(p Params) *Engine {
	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic != "" && r.Handler != nil {
			handlers[r.Topic] = r.Handler
		}
	}
	return &Engine{
		client:   p.Client,
		logger:   p.Logger.Named("worker"),
		enabled:  p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		workers:  max(p.Config.Messaging.Workers.Concurrency, 1),
		handlers: handlers,
	}
}

// Topics lists the consumed topics in sorted order.
func (e *Engine) Topics() []string {
	return slices.Sorted(maps.Keys(e.handlers))
}

// Start launches the consumers. It returns immediately.
func (e *Engine) Start(context.Context) error {
	if !e.enabled || len(e.handlers) == 0 {
		e.logger.Info("worker engine idle", zap.Bool("enabled", e.enabled), zap.Int("handlers", len(e.handlers)))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	topics := e.Topics()
	for id := range e.workers {
		g.Go(func() error {
			e.consume(ctx, id, topics)
			return nil
		})
	}

	e.stop = cancel
	e.done = make(chan struct{})
	go func() {
		_ = g.Wait()
		close(e.done)
	}()

	e.logger.Info("worker engine started", zap.Int("workers", e.workers), zap.Strings("topics", topics))
	return nil
}

// Stop cancels the consumers and waits for in-flight handlers or ctx, whichever ends first.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stop == nil {
		return nil
	}
	e.stop()
	select {
	case <-e.done:
		e.logger.Info("worker engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker engine drain: %w", ctx.Err())
	}
}

// Dispatch hands msg to its topic's handler. Unknown topics are dropped and a panicking handler
// is reported as an error.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) (err error) {
	handler, ok := e.handlers[msg.Topic]
	if !ok {
		e.logger.Warn("dropping message for unregistered topic", zap.String("topic", msg.Topic))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked", zap.String("topic", msg.Topic), zap.Any("panic", r))
			err = fmt.Errorf("handler for %s panicked: %v", msg.Topic, r)
		}
	}()
	return handler(ctx, msg)
}

// consume reconnects with jittered exponential backoff until ctx ends.
func (e *Engine) consume(ctx context.Context, id int, topics []string) {
	log := e.logger.With(zap.Int("worker", id))
	backoff := messaging.Backoff{Initial: initialBackoff, Max: maxBackoff}
	for ctx.Err() == nil {
		err := e.client.Consume(ctx, topics, func(ctx context.Context, msg messaging.Message) error {
			log.Debug("message received", zap.String("topic", msg.Topic), zap.ByteString("key", msg.Key))
			return e.Dispatch(messaging.Extract(ctx, msg), msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		log.Error("consumer failed; reconnecting", zap.Error(err))
		if backoff.Wait(ctx) != nil {
			return
		}
	}
}
