package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BrokerNone     = "none"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

type Config struct {
	// Network
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":50051"`

	// MySQL
	MySQLDSN          string        `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/booking?parseTime=true"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	RunMigrations     bool          `envconfig:"RUN_MIGRATIONS" default:"true"`

	// Redis, idempotency is disabled when empty
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Booking rules
	MaxBookings int `envconfig:"MAX_BOOKINGS" default:"2"`

	// Events
	EventBroker    string   `envconfig:"EVENT_BROKER" default:"none"`
	EventWorkers   int      `envconfig:"EVENT_WORKERS" default:"2"`
	EventQueueSize int      `envconfig:"EVENT_QUEUE_SIZE" default:"1024"`
	RabbitURL      string   `envconfig:"RABBIT_URL"`
	RabbitExchange string   `envconfig:"RABBIT_EXCHANGE" default:"booking.exchange"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"booking-events"`

	// Observability
	ServiceName  string `envconfig:"SERVICE_NAME" default:"inventory-booking"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.MaxBookings <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BOOKINGS must be positive, got %d", c.MaxBookings))
	}
	if c.EventWorkers <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_WORKERS must be positive, got %d", c.EventWorkers))
	}
	if c.EventQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_QUEUE_SIZE must be positive, got %d", c.EventQueueSize))
	}

	switch c.EventBroker {
	case BrokerNone:
	case BrokerRabbitMQ:
		if c.RabbitURL == "" {
			errs = append(errs, errors.New("RABBIT_URL is required when EVENT_BROKER=rabbitmq"))
		}
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENT_BROKER=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_BROKER %q", c.EventBroker))
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}

	return errors.Join(errs...)
}
