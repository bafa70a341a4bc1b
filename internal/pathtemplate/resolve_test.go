package pathtemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "two variables",
			template: "/{{compliance_head}}/{{year}}",
			vars:     map[string]string{"compliance_head": "GST", "year": "2025"},
			want:     "/GST/2025",
		},
		{
			name:     "repeated variable",
			template: "/{{entity}}/{{year}}/{{entity}}-{{year}}",
			vars:     map[string]string{"entity": "Acme", "year": "2025"},
			want:     "/Acme/2025/Acme-2025",
		},
		{
			name:     "spaces inside braces",
			template: "/{{ sub_head }}/Q",
			vars:     map[string]string{"sub_head": "GSTR-1"},
			want:     "/GSTR-1/Q",
		},
		{
			name:     "no placeholders",
			template: "/Shared/Policies",
			vars:     nil,
			want:     "/Shared/Policies",
		},
		{
			name:     "single braces are literal",
			template: "/{draft}/{{year}}",
			vars:     map[string]string{"year": "2025"},
			want:     "/{draft}/2025",
		},
		{
			name:     "extra variables ignored",
			template: "/{{year}}",
			vars:     map[string]string{"year": "2025", "month": "06"},
			want:     "/2025",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.template, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Unresolved(t *testing.T) {
	_, err := Resolve("/{{compliance_head}}/{{year}}", map[string]string{"compliance_head": "GST"})

	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"year"}, unresolved.Names)
	assert.Contains(t, err.Error(), "year")
}

func TestResolve_UnresolvedListsAllNamesOnce(t *testing.T) {
	_, err := Resolve("/{{a}}/{{b}}/{{a}}/{{c}}", map[string]string{"c": "x", "b": ""})

	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"a", "b"}, unresolved.Names)
}

func TestResolve_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "unterminated", template: "/{{compliance_head}}/{{year"},
		{name: "stray closing", template: "/GST}}/{{year}}"},
		{name: "empty name", template: "/{{}}/x"},
		{name: "blank name", template: "/{{  }}/x"},
		{name: "nested", template: "/{{a{{b}}}}"},
		{name: "invalid name", template: "/{{compliance-head}}"},
		{name: "digit first", template: "/{{1st}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.template, map[string]string{"compliance_head": "GST", "year": "2025", "a": "x", "b": "y"})
			var malformed *MalformedTemplateError
			require.ErrorAs(t, err, &malformed)
			assert.Empty(t, got)
			assert.Equal(t, tt.template, malformed.Template)
		})
	}
}

func TestVariables(t *testing.T) {
	names, err := Variables("/{{entity}}/{{year}}/{{entity}}")
	require.NoError(t, err)
	assert.Equal(t, []string{"entity", "year"}, names)

	_, err = Variables("/{{entity")
	assert.Error(t, err)
}
