package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"compass/internal/config"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		cfg  config.SamplerConfig
		want string
	}{
		{cfg: config.SamplerConfig{Type: "always_off"}, want: sdktrace.NeverSample().Description()},
		{cfg: config.SamplerConfig{Type: "traceidratio", Param: 0.25}, want: sdktrace.TraceIDRatioBased(0.25).Description()},
		{cfg: config.SamplerConfig{Type: "parentbased_always_on"}, want: sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{cfg: config.SamplerConfig{Type: "bogus"}, want: sdktrace.AlwaysSample().Description()},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			assert.Equal(t, tt.want, Sampler(tt.cfg).Description())
		})
	}
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, "scheduler-service")
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}
