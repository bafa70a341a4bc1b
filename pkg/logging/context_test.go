package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want []interface{}
	}{
		{
			name: "empty context",
			ctx:  context.Background(),
			want: []interface{}{},
		},
		{
			name: "all fields in fixed order",
			ctx: WithSweepID(
				WithServiceName(
					WithMessageID(
						WithTraceID(context.Background(), "t-1"),
						"m-1"),
					"scheduler-service"),
				"s-1"),
			want: []interface{}{"trace_id", "t-1", "message_id", "m-1", "service_name", "scheduler-service", "sweep_id", "s-1"},
		},
		{
			name: "sweep only",
			ctx:  WithSweepID(context.Background(), "s-2"),
			want: []interface{}{"sweep_id", "s-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetLogFields(tt.ctx))
		})
	}
}

func TestStringKeysDoNotCollide(t *testing.T) {
	ctx := context.WithValue(context.Background(), "sweep_id", "plain-string-key")
	assert.Empty(t, GetSweepID(ctx))
}
