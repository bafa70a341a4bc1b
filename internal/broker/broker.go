package broker

import (
	"context"
	"fmt"

	"compass/internal/config"
	"compass/internal/logger"
	"compass/pkg/models"
)

// Producer publishes envelopes. Implementations key messages by envelope ID.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

// Consumer delivers envelopes from one topic to a handler until ctx ends.
// Handler errors wrapped with retry.NewFatalError skip retries and go to the
// DLQ.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error

const typeKafka = "kafka"

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	if err := checkBroker(cfg); err != nil {
		return nil, err
	}
	return NewKafkaProducer(cfg.Kafka, log), nil
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	if err := checkBroker(cfg); err != nil {
		return nil, err
	}
	return NewKafkaConsumer(cfg.Kafka, log), nil
}

func checkBroker(cfg config.BrokerConfig) error {
	if cfg.Type != typeKafka {
		return fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka broker list is empty")
	}
	return nil
}
