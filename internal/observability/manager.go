package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Manager owns the process-wide tracer and meter providers.
type Manager struct {
	cfg    config.Observability
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	scrape http.Handler
}

// Module provides the manager and the domain instruments. The manager is always built so worker
// and scheduler processes export telemetry too.
var Module = fx.Options(
	fx.Provide(NewManager, NewMetrics),
	fx.Invoke(func(*Manager) {}),
)

// NewManager builds the providers selected by configuration and installs them globally when the
// application starts.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	obs := cfg.Observability
	ctx := context.Background()

	res, err := newResource(ctx, obs)
	if err != nil {
		return nil, err
	}

	mgr := &Manager{cfg: obs}
	if obs.EnableTracing {
		if mgr.tracer, err = newTracerProvider(ctx, obs, res, logger); err != nil {
			return nil, err
		}
	}
	if obs.EnableMetrics {
		if mgr.meter, mgr.scrape, err = newMeterProvider(obs, res, logger); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			mgr.install()
			return nil
		},
		OnStop: mgr.shutdown,
	})
	return mgr, nil
}

func (m *Manager) install() {
	if m.tracer != nil {
		otel.SetTracerProvider(m.tracer)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if m.meter != nil {
		otel.SetMeterProvider(m.meter)
	}
}

func (m *Manager) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if m.tracer != nil {
		errs = append(errs, m.tracer.Shutdown(ctx))
	}
	if m.meter != nil {
		errs = append(errs, m.meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// TracingEnabled reports whether spans are exported.
func (m *Manager) TracingEnabled() bool {
	return m.tracer != nil
}

// MetricsEnabled reports whether a meter provider is installed.
func (m *Manager) MetricsEnabled() bool {
	return m.meter != nil
}

// MetricsHandler returns the scrape handler, or nil unless the prometheus exporter is selected.
func (m *Manager) MetricsHandler() http.Handler {
	return m.scrape
}

// PrometheusPath returns the path the scrape handler is mounted on.
func (m *Manager) PrometheusPath() string {
	return m.cfg.PrometheusPath
}
