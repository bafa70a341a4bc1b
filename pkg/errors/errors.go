package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrTimeout            = NewError("TIMEOUT", "operation timed out", http.StatusRequestTimeout)
	ErrServiceUnavailable = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)

	ErrInvalidToken       = NewError("INVALID_TOKEN", "invalid interval token", http.StatusUnprocessableEntity)
	ErrMalformedTemplate  = NewError("MALFORMED_TEMPLATE", "malformed path template", http.StatusUnprocessableEntity)
	ErrUnresolvedVariable = NewError("UNRESOLVED_VARIABLE", "template variable could not be resolved", http.StatusUnprocessableEntity)
	ErrInvalidPeriod      = NewError("INVALID_PERIOD", "invalid retention period", http.StatusUnprocessableEntity)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable and IsFatal are exact opposites. An explicit AsRetryable or
// AsFatal wins, then the classification of the cause, then the status: 4xx
// (except TIMEOUT) is fatal.
func (e *Error) IsRetryable() bool {
	return e.retryableClass()
}

func (e *Error) IsFatal() bool {
	return !e.retryableClass()
}

func (e *Error) retryableClass() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var r RetryableError
		if errors.As(e.Cause, &r) {
			return r.IsRetryable()
		}
		var f FatalError
		if errors.As(e.Cause, &f) {
			return !f.IsFatal()
		}
	}
	clientErr := e.Status >= http.StatusBadRequest && e.Status < http.StatusInternalServerError
	return !clientErr || e.Code == ErrTimeout.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

// WithDetail copies the details map so sentinel errors are never mutated.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	err.Details[key] = value
	return &err
}

func (e *Error) AsRetryable() *Error {
	return e.withRetryable(true)
}

func (e *Error) AsFatal() *Error {
	return e.withRetryable(false)
}

func (e *Error) withRetryable(v bool) *Error {
	err := *e
	err.retryable = &v
	return &err
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
