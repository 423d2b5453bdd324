package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/observability"
)

func TestPrometheusScrapeServesDomainCounters(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := observability.NewManager(lc, config.Config{Observability: config.Observability{
		ServiceName:     "kitchen-test",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	}}, zap.NewNop())
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	assert.False(t, mgr.TracingEnabled())
	require.True(t, mgr.MetricsEnabled())
	require.NotNil(t, mgr.MetricsHandler())

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	metrics.Submitted(t.Context())
	metrics.Transition(t.Context(), "accept", "ok")

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, mgr.PrometheusPath(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kitchen_order_submitted")
	assert.Contains(t, string(body), "kitchen_order_transitions")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestUnknownExportersDisableSignals(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := observability.NewManager(lc, config.Config{Observability: config.Observability{
		EnableTracing:   true,
		TraceExporter:   "zipkin",
		EnableMetrics:   true,
		MetricsExporter: "statsd",
	}}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.Submitted(t.Context())
		m.Swept(t.Context(), "unpaid", "updated")
		m.Refund(t.Context(), "failed")
	})
}
