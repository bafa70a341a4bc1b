package broker

import (
	"context"
	"fmt"

	"compass/pkg/logging"
	"compass/pkg/models"
	"compass/pkg/tracing"
)

// Publish wraps payload in an envelope and writes it to topic. A non-empty id
// replaces the random envelope ID so downstream consumers can deduplicate.
func Publish(ctx context.Context, p Producer, topic, source, eventType, id string, payload interface{}) (models.MessageEnvelope, error) {
	envelope, err := models.NewEnvelope(source, eventType, payload)
	if err != nil {
		return models.MessageEnvelope{}, err
	}

	if id != "" {
		envelope.ID = id
	}

	envelope.Metadata.TraceID = tracing.TraceID(ctx)
	if envelope.Metadata.TraceID == "" {
		envelope.Metadata.TraceID = logging.GetTraceID(ctx)
	}
	envelope.Metadata.SweepID = logging.GetSweepID(ctx)

	if err := p.Publish(ctx, topic, envelope); err != nil {
		return envelope, fmt.Errorf("failed to publish %s to %s: %w", eventType, topic, err)
	}
	return envelope, nil
}
