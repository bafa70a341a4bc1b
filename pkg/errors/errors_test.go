package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/interval"
	"compass/internal/pathtemplate"
	"compass/internal/retention"
	"compass/internal/rules"
)

func TestFromDomain(t *testing.T) {
	_, tokenErr := interval.Parse("X+1")
	_, templateErr := pathtemplate.Resolve("/{{year", nil)
	_, unresolvedErr := pathtemplate.Resolve("/{{year}}", nil)
	_, periodErr := retention.NextExecution(civil.Date{Year: 2025, Month: 1, Day: 1}, 0, rules.UnitDays)

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "token", err: tokenErr, wantCode: "INVALID_TOKEN", wantStatus: http.StatusUnprocessableEntity},
		{name: "wrapped token", err: fmt.Errorf("rule 7: %w", tokenErr), wantCode: "INVALID_TOKEN", wantStatus: http.StatusUnprocessableEntity},
		{name: "malformed template", err: templateErr, wantCode: "MALFORMED_TEMPLATE", wantStatus: http.StatusUnprocessableEntity},
		{name: "unresolved variable", err: unresolvedErr, wantCode: "UNRESOLVED_VARIABLE", wantStatus: http.StatusUnprocessableEntity},
		{name: "invalid period", err: periodErr, wantCode: "INVALID_PERIOD", wantStatus: http.StatusUnprocessableEntity},
		{name: "app error passes through", err: ErrNotFound, wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "unknown", err: errors.New("boom"), wantCode: "INTERNAL_ERROR", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			got := FromDomain(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantStatus, ToHTTPStatus(got))
		})
	}

	assert.Nil(t, FromDomain(nil))
}

func TestFromDomain_Details(t *testing.T) {
	_, err := pathtemplate.Resolve("/{{a}}/{{b}}", map[string]string{})

	appErr := FromDomain(err)
	assert.Equal(t, []string{"a", "b"}, appErr.Details["variables"])

	resp := ToErrorResponse(appErr)
	assert.Equal(t, "UNRESOLVED_VARIABLE", resp["error_code"])
	assert.Contains(t, resp, "details")
}

func TestWithDetail_DoesNotMutateSentinel(t *testing.T) {
	_ = ErrValidation.WithDetail("field", "tokens")
	assert.Empty(t, ErrValidation.Details)
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{name: "validation", err: ErrValidation, retryable: false},
		{name: "not found", err: ErrNotFound, retryable: false},
		{name: "invalid token", err: ErrInvalidToken, retryable: false},
		{name: "internal", err: ErrInternal, retryable: true},
		{name: "timeout", err: ErrTimeout, retryable: true},
		{name: "forced fatal", err: ErrInternal.AsFatal(), retryable: false},
		{name: "forced retryable", err: ErrValidation.AsRetryable(), retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
	assert.True(t, appErr.IsFatal())
	assert.Equal(t, true, appErr.Details["panic"])
}
