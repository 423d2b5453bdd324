package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	return errors.Join(
		c.Cache.normalize(),
		c.Messaging.normalize(),
		c.Database.normalize(),
		c.Observability.normalize(),
		c.Shop.normalize(),
		c.Geo.normalize(c.Shop),
		c.Scheduler.normalize(),
	)
}

func (c *Cache) normalize() error {
	if !c.Enabled {
		c.Driver = "noop"
	}
	switch c.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("missing REDIS_ADDR for redis cache")
		}
	case "noop":
	default:
		return fmt.Errorf("unsupported cache driver: %s", c.Driver)
	}
	if c.DefaultTTL < 0 {
		c.DefaultTTL = 5 * time.Minute
	}
	return nil
}

func (m *Messaging) normalize() error {
	if !m.Enabled {
		m.Driver = "noop"
	}
	if m.Topics.OrderEvents == "" || m.Topics.PaymentsConfirmed == "" {
		return errors.New("TOPIC_ORDER_EVENTS and TOPIC_PAYMENTS_CONFIRMED must be provided")
	}

	switch m.Driver {
	case "kafka":
		if len(m.Kafka.Brokers) == 0 {
			return errors.New("KAFKA_BROKERS must be provided")
		}
		if m.ConsumerGroup == "" {
			return errors.New("KAFKA_CONSUMER_GROUP must be provided")
		}
	case "rabbitmq":
		if m.RabbitMQ.URL == "" || m.RabbitMQ.Exchange == "" {
			return errors.New("RABBITMQ_URL and RABBITMQ_EXCHANGE must be provided")
		}
	case "noop":
	default:
		return fmt.Errorf("unsupported messaging driver: %s", m.Driver)
	}

	m.Workers.Concurrency = max(m.Workers.Concurrency, 1)
	if m.Workers.PollInterval <= 0 {
		m.Workers.PollInterval = time.Second
	}
	if m.Retry.Initial <= 0 {
		m.Retry.Initial = time.Second
	}
	m.Retry.Max = max(m.Retry.Max, m.Retry.Initial)
	if m.RabbitMQ.RetryDelay <= 0 {
		m.RabbitMQ.RetryDelay = 5 * time.Second
	}
	return nil
}

func (d *Database) normalize() error {
	switch d.Driver {
	case "postgres", "pgx", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", d.Driver)
	}
	if d.WriterDSN == "" {
		return errors.New("missing DB_WRITER_DSN")
	}
	if d.ReaderDSN == "" {
		d.ReaderDSN = d.WriterDSN
	}
	return nil
}

func (o *Observability) normalize() error {
	o.LogLevel = lowerOr(o.LogLevel, "info")
	o.LogEncoding = lowerOr(o.LogEncoding, "json")
	o.TraceExporter = lowerOr(o.TraceExporter, "stdout")
	o.MetricsExporter = lowerOr(o.MetricsExporter, "prometheus")

	switch {
	case o.PrometheusPath == "":
		o.PrometheusPath = "/metrics"
	case !strings.HasPrefix(o.PrometheusPath, "/"):
		o.PrometheusPath = "/" + o.PrometheusPath
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		return fmt.Errorf("OBS_TRACE_SAMPLE_RATIO must be within [0, 1], got %v", o.TraceSampleRatio)
	}
	return nil
}

func (s *Shop) normalize() error {
	if s.MaxDeliveryDistance <= 0 {
		return fmt.Errorf("invalid SHOP_MAX_DELIVERY_DISTANCE: %d", s.MaxDeliveryDistance)
	}
	if s.DeliveryFee.IsNegative() {
		return errors.New("SHOP_DELIVERY_FEE must not be negative")
	}
	return nil
}

func (g *Geo) normalize(shop Shop) error {
	g.BaseURL = strings.TrimRight(g.BaseURL, "/")
	if g.Timeout <= 0 {
		g.Timeout = 3 * time.Second
	}
	if !g.Enabled {
		return nil
	}
	if g.AK == "" {
		return errors.New("GEO_AK must be provided when geocoding is enabled")
	}
	if shop.Coordinate == "" {
		return errors.New("SHOP_COORDINATE must be provided when geocoding is enabled")
	}
	return nil
}

func (s *Scheduler) normalize() error {
	if s.PaymentTimeoutGrace <= 0 {
		s.PaymentTimeoutGrace = 15 * time.Minute
	}
	if s.StuckDeliveryGrace <= 0 {
		s.StuckDeliveryGrace = time.Hour
	}
	if s.SweepTimeout <= 0 {
		s.SweepTimeout = 30 * time.Second
	}
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", s.TimeZone, err)
	}
	return nil
}

func lowerOr(v, def string) string {
	if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
		return v
	}
	return def
}
