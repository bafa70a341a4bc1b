package models

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMessageEnvelope(t *testing.T) {
	valid := &MessageEnvelope{ID: "1", Source: "scheduler-service", Timestamp: time.Now(), Payload: map[string]interface{}{}}
	assert.NoError(t, ValidateMessageEnvelope(valid))
	assert.Error(t, ValidateMessageEnvelope(nil))

	missingSource := *valid
	missingSource.Source = ""
	err := ValidateMessageEnvelope(&missingSource)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "source", vErr.Field)
}

func TestEnvelopeCarriesScheduledEvent(t *testing.T) {
	ev := NewScheduledEvent(KindReminder, civil.Date{Year: 2025, Month: 6, Day: 15}, "3", "task-1", "T-15")
	ev.Token = "T-15"

	env, err := NewEnvelope("scheduler-service", string(KindReminder), ev)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", env.Payload["firing_date"])
	assert.Equal(t, string(KindReminder), env.Metadata.EventType)

	var decoded ScheduledEvent
	require.NoError(t, DecodePayload(env, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestNewScheduledEvent_DeterministicID(t *testing.T) {
	date := civil.Date{Year: 2025, Month: 7, Day: 1}
	a := NewScheduledEvent(KindReminder, date, "3", "task-1", "D+1")
	b := NewScheduledEvent(KindReminder, date, "3", "task-1", "D+1")
	c := NewScheduledEvent(KindReminder, date, "3", "task-2", "D+1")

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestValidateTaxonomyEvent(t *testing.T) {
	assert.NoError(t, ValidateTaxonomyEvent(&TaxonomyEvent{ID: "e1", EventType: "sub-head-created"}))
	assert.Error(t, ValidateTaxonomyEvent(&TaxonomyEvent{ID: "e1"}))
	assert.Error(t, ValidateTaxonomyEvent(nil))
}
