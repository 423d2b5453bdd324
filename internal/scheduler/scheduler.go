package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
	ordersvc "github.com/Additional-Code/kitchen/internal/service/order"
)

var schedulerTracer = otel.Tracer("github.com/Additional-Code/kitchen/scheduler")

// Sweeper is the part of the order engine the scheduler drives.
type Sweeper interface {
	CancelUnpaid(ctx context.Context, grace time.Duration) (ordersvc.SweepResult, error)
	CompleteStuckDeliveries(ctx context.Context, grace time.Duration) (ordersvc.SweepResult, error)
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Sweeper Sweeper
	Config  config.Config
	Logger  *zap.Logger
}

// Scheduler runs the reconciliation sweeps on their cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	cfg     config.Scheduler
	logger  *zap.Logger
}

// Module wires the scheduler into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(
		New,
		func(svc *ordersvc.Service) Sweeper { return svc },
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: s.start,
			OnStop:  s.stop,
		})
	}),
)

// New builds a Scheduler and registers both sweeps. Specs use the six-field form with seconds.
func New(p Params) (*Scheduler, error) {
	cfg := p.Config.Scheduler
	loc := time.Local
	if cfg.TimeZone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.TimeZone); err != nil {
			return nil, fmt.Errorf("scheduler time zone: %w", err)
		}
	}

	logger := p.Logger.Named("scheduler")
	cronLogger := cronLog{logger: logger}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	s := &Scheduler{cron: c, sweeper: p.Sweeper, cfg: cfg, logger: logger}
	if _, err := c.AddFunc(cfg.PaymentTimeoutSpec, s.CancelUnpaid); err != nil {
		return nil, fmt.Errorf("payment timeout schedule %q: %w", cfg.PaymentTimeoutSpec, err)
	}
	if _, err := c.AddFunc(cfg.StuckDeliverySpec, s.CompleteStuckDeliveries); err != nil {
		return nil, fmt.Errorf("stuck delivery schedule %q: %w", cfg.StuckDeliverySpec, err)
	}
	return s, nil
}

func (s *Scheduler) start(context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return nil
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("payment_timeout", s.cfg.PaymentTimeoutSpec),
		zap.String("stuck_delivery", s.cfg.StuckDeliverySpec),
	)
	return nil
}

func (s *Scheduler) stop(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelUnpaid runs one payment-timeout sweep.
func (s *Scheduler) CancelUnpaid() {
	s.run("payment_timeout", func(ctx context.Context) (ordersvc.SweepResult, error) {
		return s.sweeper.CancelUnpaid(ctx, s.cfg.PaymentTimeoutGrace)
	})
}

// CompleteStuckDeliveries runs one stuck-delivery sweep.
func (s *Scheduler) CompleteStuckDeliveries() {
	s.run("delivery_timeout", func(ctx context.Context) (ordersvc.SweepResult, error) {
		return s.sweeper.CompleteStuckDeliveries(ctx, s.cfg.StuckDeliveryGrace)
	})
}

func (s *Scheduler) run(name string, sweep func(context.Context) (ordersvc.SweepResult, error)) {
	ctx := context.Background()
	if s.cfg.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SweepTimeout)
		defer cancel()
	}
	ctx, span := schedulerTracer.Start(ctx, "scheduler."+name)
	defer span.End()

	started := time.Now()
	res, err := sweep(ctx)
	fields := []zap.Field{
		zap.String("sweep", name),
		zap.Int("found", res.Found),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(started)),
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Error("sweep aborted", append(fields, zap.Error(err))...)
		return
	}
	if res.Found > 0 {
		s.logger.Info("sweep finished", fields...)
		return
	}
	s.logger.Debug("sweep finished", fields...)
}

// cronLog adapts zap to cron.Logger.
type cronLog struct {
	logger *zap.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
