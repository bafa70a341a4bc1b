package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateCondition(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "bool", expr: `entity == "Acme"`},
		{name: "string result", expr: `entity`, wantError: true},
		{name: "broken", expr: `entity ==`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateCondition(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConditionExamplesCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range ConditionExamples {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, eval.ValidateCondition(expr))
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	vars := map[string]string{
		"compliance_head": "GST",
		"sub_head":        "GSTR-1",
		"entity":          "Acme",
		"entity_type":     "llp",
		"turnover_cr":     "7.5",
	}

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "head equals", expr: ConditionExamples["head_equals"], want: true},
		{name: "head in list", expr: ConditionExamples["head_in_list"], want: true},
		{name: "attribute present", expr: ConditionExamples["attribute_present"], want: true},
		{name: "attribute absent falls back", expr: ConditionExamples["attribute_default"], want: false},
		{name: "prefix", expr: ConditionExamples["prefix"], want: true},
		{name: "numeric attribute", expr: ConditionExamples["numeric_attribute"], want: true},
		{name: "unset top level is empty", expr: `document_type == ""`, want: true},
		{name: "false", expr: `compliance_head == "TDS"`, want: false},
		{name: "missing key errors", expr: `target.state == "KA"`, wantErr: true},
		{name: "non bool errors", expr: `entity`, wantErr: true},
		{name: "compile error", expr: `entity ==`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateCondition(tt.expr, vars)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_ProgramCache(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	expr := `entity == "Acme"`
	for i := 0; i < 3; i++ {
		got, err := eval.EvaluateConditionCtx(context.Background(), expr, map[string]string{"entity": "Acme"})
		require.NoError(t, err)
		assert.True(t, got)
	}

	_, cached := eval.programs.Load(expr)
	assert.True(t, cached)
}

func TestEvaluateCondition_DoesNotMutateVars(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	vars := map[string]string{"entity": "Acme"}
	_, err = eval.EvaluateCondition(`entity == "Acme"`, vars)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"entity": "Acme"}, vars)
}
