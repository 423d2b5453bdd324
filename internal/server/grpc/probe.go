package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	probeInterval = 5 * time.Second
	probeTimeout  = 2 * time.Second
)

// Probe sets the serving status of ServiceName and the server from one readiness check.
func Probe(ctx context.Context, probe ReadinessProbe, healthSrv *health.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := probe.Ready(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		logger.Warn("readiness probe failed", zap.Error(err))
	}
	healthSrv.SetServingStatus("", st)
	healthSrv.SetServingStatus(ServiceName, st)
}

// prober re-runs Probe on a ticker between start and stop.
type prober struct {
	probe  ReadinessProbe
	health *health.Server
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func newProber(probe ReadinessProbe, healthSrv *health.Server, logger *zap.Logger) *prober {
	return &prober{probe: probe, health: healthSrv, logger: logger}
}

func (p *prober) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()
		for {
			Probe(ctx, p.probe, p.health, p.logger)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// stop halts probing and marks every service NOT_SERVING so clients drain first.
func (p *prober) stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	p.health.Shutdown()
}
