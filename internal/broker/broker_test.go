package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/config"
	"compass/internal/logger"
	"compass/pkg/logging"
	"compass/pkg/models"
)

type recordingProducer struct {
	topics   []string
	messages []models.MessageEnvelope
	err      error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestPublish_EnvelopeShape(t *testing.T) {
	p := &recordingProducer{}
	ctx := logging.WithSweepID(logging.WithTraceID(context.Background(), "trace-1"), "sweep-1")

	req := models.FolderCreationRequest{Path: "/GST/2025", AccessLevel: "restricted", TriggerRuleID: "1"}
	env, err := Publish(ctx, p, "folders", "folder-service", "folder.create", "evt-1", req)
	require.NoError(t, err)

	require.Len(t, p.messages, 1)
	assert.Equal(t, "folders", p.topics[0])
	assert.Equal(t, "evt-1", env.ID)
	assert.Equal(t, "folder-service", env.Source)
	assert.Equal(t, "folder.create", env.Metadata.EventType)
	assert.Equal(t, "trace-1", env.Metadata.TraceID)
	assert.Equal(t, "sweep-1", env.Metadata.SweepID)

	var decoded models.FolderCreationRequest
	require.NoError(t, models.DecodePayload(p.messages[0], &decoded))
	assert.Equal(t, req.Path, decoded.Path)
}

func TestPublish_RandomIDWhenEmpty(t *testing.T) {
	p := &recordingProducer{}
	env, err := Publish(context.Background(), p, "t", "s", "e", "", map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
}

func TestPublish_ProducerError(t *testing.T) {
	p := &recordingProducer{err: errors.New("broker down")}
	_, err := Publish(context.Background(), p, "t", "s", "e", "id", map[string]string{})
	assert.ErrorContains(t, err, "broker down")
}

func TestWithDLQInfo(t *testing.T) {
	orig := models.MessageEnvelope{ID: "m-1", Metadata: models.Metadata{Extra: map[string]interface{}{"k": "v"}}}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := WithDLQInfo(orig, errors.New("handler failed"), "compass.taxonomy", at)

	assert.Equal(t, "handler failed", got.Metadata.Extra["dlq_reason"])
	assert.Equal(t, "compass.taxonomy", got.Metadata.Extra["dlq_source_topic"])
	assert.Equal(t, "2025-06-01T12:00:00Z", got.Metadata.Extra["dlq_timestamp"])
	assert.Equal(t, "v", got.Metadata.Extra["k"])
	assert.Len(t, orig.Metadata.Extra, 1)
}

func TestProcessMessageWithRetry(t *testing.T) {
	c := NewKafkaConsumer(config.KafkaConfig{Retry: config.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}}, logger.NopLogger())

	calls := 0
	err := c.processMessageWithRetry(context.Background(), models.MessageEnvelope{ID: "1"}, func(context.Context, models.MessageEnvelope) error {
		calls++
		if calls == 1 {
			panic("first attempt explodes")
		}
		return nil
	}, "topic")

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = c.processMessageWithRetry(context.Background(), models.MessageEnvelope{ID: "1"}, func(context.Context, models.MessageEnvelope) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, "topic")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestFactory_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.BrokerConfig
	}{
		{name: "unknown type", cfg: config.BrokerConfig{Type: "nats", Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}}}},
		{name: "no brokers", cfg: config.BrokerConfig{Type: "kafka"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProducer(tt.cfg, logger.NopLogger())
			assert.Error(t, err)
			_, err = NewConsumer(tt.cfg, logger.NopLogger())
			assert.Error(t, err)
		})
	}
}
