package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"compass/pkg/logging"
)

func observed() (*SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &SugaredLogger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		log, err := New("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, log)
	}

	log, err := New("verbose", "json")
	require.NoError(t, err)
	sugared := log.(*SugaredLogger)
	assert.True(t, sugared.Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, sugared.Desugar().Core().Enabled(zap.DebugLevel))
}

func TestInfowCtx_AddsContextFields(t *testing.T) {
	log, logs := observed()
	log.SetServiceName("scheduler-service")

	ctx := logging.WithSweepID(logging.WithTraceID(context.Background(), "t-1"), "s-1")
	log.InfowCtx(ctx, "sweep finished", "events", 3)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "s-1", fields["sweep_id"])
	assert.Equal(t, "scheduler-service", fields["service_name"])
	assert.EqualValues(t, 3, fields["events"])
}

func TestWith_KeepsServiceName(t *testing.T) {
	log, logs := observed()
	log.SetServiceName("folder-service")

	child := log.With("rule_id", "7")
	child.WarnwCtx(context.Background(), "template failed")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "7", fields["rule_id"])
	assert.Equal(t, "folder-service", fields["service_name"])
}

func TestNopLogger(t *testing.T) {
	log := NopLogger()
	log.InfowCtx(context.Background(), "ignored")
	assert.NotNil(t, log.With("k", "v"))
}
