package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"compass/internal/broker"
	"compass/internal/config"
	"compass/internal/config_handler"
	"compass/internal/logger"
	"compass/pkg/logging"
)

// Base holds what every Kafka-driven compass service shares: config, the
// logger, the producer, the main consumer and an optional second consumer
// for rule-change notifications.
type Base struct {
	Config         *config.Config
	Logger         logger.Logger
	Producer       broker.Producer
	Consumer       broker.Consumer
	ConfigConsumer broker.Consumer

	service string
}

func NewBase(cfg *config.Config, log logger.Logger, service string) *Base {
	return &Base{
		Config:  cfg,
		Logger:  log,
		service: service,
	}
}

func (b *Base) InitBroker() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		producer.Close()
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	consumer.SetServiceName(b.service)
	if named, ok := producer.(interface{ SetServiceName(string) }); ok {
		named.SetServiceName(b.service)
	}

	b.Producer = producer
	b.Consumer = consumer

	if b.Config.Broker.Kafka.Topics.ConfigUpdates == "" {
		return nil
	}
	configConsumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		b.Logger.Warnw("Failed to create config update consumer, event-driven reload disabled",
			"service_name", b.service,
			"error", err,
		)
		return nil
	}
	configConsumer.SetServiceName(b.service)
	b.ConfigConsumer = configConsumer
	return nil
}

// ConsumeConfigUpdates reloads target whenever a notification of eventType
// addressed to serviceType arrives. Without a config consumer it does
// nothing and the interval reloader is the only refresh path.
func (b *Base) ConsumeConfigUpdates(ctx context.Context, g *errgroup.Group, eventType, serviceType string, target config_handler.ConfigReloader) {
	if b.ConfigConsumer == nil {
		return
	}
	topic := b.Config.Broker.Kafka.Topics.ConfigUpdates
	handler := config_handler.NewHandler(eventType, serviceType, target, b.Logger)

	g.Go(func() error {
		b.Logger.InfowCtx(logging.WithServiceName(ctx, b.service), "Starting config update consumer", "topic", topic)
		return b.ConfigConsumer.Consume(ctx, topic, handler.HandleConfigUpdateEvent)
	})
}

func (b *Base) closeBroker() error {
	var errs []error
	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}
	for _, c := range []broker.Consumer{b.Consumer, b.ConfigConsumer} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown closes the broker clients, then runs extra (tracer, databases).
func (b *Base) Shutdown(ctx context.Context, extra func(ctx context.Context) []error) error {
	ctx = logging.WithServiceName(ctx, b.service)
	b.Logger.InfowCtx(ctx, "Shutting down application")

	errs := []error{b.closeBroker()}
	if extra != nil {
		errs = append(errs, extra(ctx)...)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}

	b.Logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}
