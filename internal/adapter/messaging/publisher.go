package messaging

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/rl1809/inventory-booking/internal/config"
	"github.com/rl1809/inventory-booking/internal/core/domain"
	"github.com/rl1809/inventory-booking/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const contentTypeJSON = "application/json"

type Config struct {
	Broker         string
	RabbitURL      string
	RabbitExchange string
	KafkaBrokers   []string
	KafkaTopic     string
}

// NewPublisher builds the publisher for the configured broker.
func NewPublisher(cfg Config) (port.EventPublisher, error) {
	switch cfg.Broker {
	case "", config.BrokerNone:
		return NoopPublisher{}, nil
	case config.BrokerRabbitMQ:
		p, err := NewAMQPPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BrokerKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown event broker %q", cfg.Broker)
	}
}

func encodeEvent(event domain.BookingEvent) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event domain.BookingEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
