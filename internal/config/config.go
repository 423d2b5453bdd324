package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

// HTTP holds HTTP server configuration.
type HTTP struct {
	Host string
	Port int
}

// GRPC holds the health endpoint's listener configuration.
type GRPC struct {
	Host string
	Port int
}

// Cache selects the order detail cache backend.
type Cache struct {
	Enabled    bool
	Driver     string
	DefaultTTL time.Duration
	Redis      Redis
}

// Redis contains redis-specific connection settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Messaging configures the bus carrying order events out and payment confirmations in.
type Messaging struct {
	Driver        string
	Enabled       bool
	Kafka         Kafka
	RabbitMQ      RabbitMQ
	Topics        Topics
	ConsumerGroup string
	Workers       Worker
	Retry         Retry
}

// Retry bounds the backoff between attempts at a message its handler rejected.
type Retry struct {
	Initial time.Duration
	Max     time.Duration
}

// Topics names the channels the service publishes to and consumes from.
type Topics struct {
	OrderEvents       string
	PaymentsConfirmed string
}

// Kafka holds Kafka connection details.
type Kafka struct {
	Brokers        []string
	ClientID       string
	CommitInterval time.Duration
	MinBytes       int
	MaxBytes       int
	ConnectTimeout time.Duration
}

// RabbitMQ holds AMQP connection details. Rejected deliveries wait RetryDelay in a retry queue
// before they return to Queue.
type RabbitMQ struct {
	URL        string
	Exchange   string
	Queue      string
	RetryDelay time.Duration
}

// Worker configures message handler concurrency.
type Worker struct {
	Enabled      bool
	PollInterval time.Duration
	Concurrency  int
}

// Database holds primary and read replica connection settings.
type Database struct {
	Driver          string
	WriterDSN       string
	ReaderDSN       string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SlowQuery       time.Duration
}

// Observability contains logging, tracing, and metrics configuration.
type Observability struct {
	ServiceName      string
	ServiceVersion   string
	Environment      string
	LogLevel         string
	LogEncoding      string
	EnableTracing    bool
	TraceExporter    string
	TraceEndpoint    string
	TraceInsecure    bool
	TraceSampleRatio float64
	EnableMetrics    bool
	MetricsExporter  string
	PrometheusPath   string
}

// Shop describes the merchant's fixed origin and delivery policy.
type Shop struct {
	Address             string
	Coordinate          string
	MaxDeliveryDistance int
	DeliveryFee         decimal.Decimal
}

// Geo configures the geocoding/routing collaborator.
type Geo struct {
	Enabled bool
	BaseURL string
	AK      string
	Timeout time.Duration
}

// Scheduler configures the reconciliation sweeps.
type Scheduler struct {
	Enabled             bool
	PaymentTimeoutSpec  string
	PaymentTimeoutGrace time.Duration
	StuckDeliverySpec   string
	StuckDeliveryGrace  time.Duration
	SweepTimeout        time.Duration
	TimeZone            string
}

// Config wraps all application configuration knobs.
type Config struct {
	HTTP          HTTP
	GRPC          GRPC
	Cache         Cache
	Messaging     Messaging
	Database      Database
	Observability Observability
	Shop          Shop
	Geo           Geo
	Scheduler     Scheduler
}

// Module wires the configuration loader into the Fx graph.
var Module = fx.Provide(New)

var loadEnvOnce sync.Once

// New reads the environment (and a .env file when present), applies defaults and validates the result.
func New() (Config, error) {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	cfg := fromEnv()
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() Config {
	return Config{
		HTTP:          httpFromEnv(),
		GRPC:          grpcFromEnv(),
		Cache:         cacheFromEnv(),
		Messaging:     messagingFromEnv(),
		Database:      databaseFromEnv(),
		Observability: observabilityFromEnv(),
		Shop:          shopFromEnv(),
		Geo:           geoFromEnv(),
		Scheduler:     schedulerFromEnv(),
	}
}
