package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5000, cfg.Shop.MaxDeliveryDistance)
	assert.True(t, cfg.Shop.DeliveryFee.IsZero())
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.PaymentTimeoutGrace)
	assert.Equal(t, time.Hour, cfg.Scheduler.StuckDeliveryGrace)
	assert.Equal(t, "0 * * * * *", cfg.Scheduler.PaymentTimeoutSpec)
	assert.Equal(t, "0 0 1 * * *", cfg.Scheduler.StuckDeliverySpec)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, "orders.events", cfg.Messaging.Topics.OrderEvents)
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_DRIVER", "rabbitmq")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("SHOP_DELIVERY_FEE", "6.50")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("KAFKA_BROKERS", " a:9092 , ,b:9092")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "rabbitmq", cfg.Messaging.Driver)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.True(t, decimal.RequireFromString("6.5").Equal(cfg.Shop.DeliveryFee))
	assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Messaging.Kafka.Brokers)
}

func TestNewRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad http port", env: map[string]string{"HTTP_PORT": "0"}},
		{name: "unknown cache driver", env: map[string]string{"CACHE_DRIVER": "memcached"}},
		{name: "unknown messaging driver", env: map[string]string{"MESSAGING_DRIVER": "nats"}},
		{name: "unknown database driver", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "negative delivery distance", env: map[string]string{"SHOP_MAX_DELIVERY_DISTANCE": "-1"}},
		{name: "geo without key", env: map[string]string{"GEO_ENABLED": "true"}},
		{name: "bad timezone", env: map[string]string{"SCHEDULER_TIMEZONE": "Mars/Olympus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestSampleRatioMustBeAFraction(t *testing.T) {
	t.Setenv("OBS_TRACE_SAMPLE_RATIO", "1.5")
	_, err := New()
	require.Error(t, err)

	t.Setenv("OBS_TRACE_SAMPLE_RATIO", "0.25")
	cfg, err := New()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, cfg.Observability.TraceSampleRatio, 1e-9)
}
