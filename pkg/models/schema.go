package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{
			Field:   "envelope",
			Message: "message envelope cannot be nil",
		}
	}

	if msg.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "message ID is required",
		}
	}

	if msg.Source == "" {
		return &ValidationError{
			Field:   "source",
			Message: "message source is required",
		}
	}

	if msg.Timestamp.IsZero() {
		return &ValidationError{
			Field:   "timestamp",
			Message: "message timestamp is required",
		}
	}

	if msg.Payload == nil {
		return &ValidationError{
			Field:   "payload",
			Message: "message payload cannot be nil",
		}
	}

	return nil
}

func ValidateTaxonomyEvent(ev *TaxonomyEvent) error {
	if ev == nil {
		return &ValidationError{Field: "event", Message: "taxonomy event cannot be nil"}
	}
	if ev.ID == "" {
		return &ValidationError{Field: "id", Message: "event ID is required"}
	}
	if ev.EventType == "" {
		return &ValidationError{Field: "event_type", Message: "event type is required"}
	}
	return nil
}

// NewEnvelope wraps a typed payload. The payload is round-tripped through
// JSON so consumers see the same map shape they would after transport.
func NewEnvelope(source, eventType string, payload interface{}) (MessageEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return MessageEnvelope{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return MessageEnvelope{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return MessageEnvelope{
		ID:        uuid.New().String(),
		Source:    source,
		Timestamp: time.Now(),
		Payload:   data,
		Metadata:  Metadata{EventType: eventType},
	}, nil
}

// DecodePayload converts an envelope payload back into a typed value.
func DecodePayload(msg MessageEnvelope, into interface{}) error {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope payload: %w", err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("failed to decode envelope payload: %w", err)
	}
	return nil
}
