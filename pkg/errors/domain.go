package errors

import (
	"errors"

	"compass/internal/interval"
	"compass/internal/pathtemplate"
	"compass/internal/retention"
)

// FromDomain maps the typed errors of the core packages onto API errors.
// Errors that are already *Error pass through; anything else is internal.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var tokenErr *interval.InvalidTokenError
	if errors.As(err, &tokenErr) {
		return ErrInvalidToken.WithCause(err).
			WithDetail("message", tokenErr.Error()).
			WithDetail("token", tokenErr.Token)
	}

	var malformed *pathtemplate.MalformedTemplateError
	if errors.As(err, &malformed) {
		return ErrMalformedTemplate.WithCause(err).
			WithDetail("message", malformed.Error()).
			WithDetail("offset", malformed.Offset)
	}

	var unresolved *pathtemplate.UnresolvedVariableError
	if errors.As(err, &unresolved) {
		return ErrUnresolvedVariable.WithCause(err).
			WithDetail("message", unresolved.Error()).
			WithDetail("variables", unresolved.Names)
	}

	var periodErr *retention.InvalidPeriodError
	if errors.As(err, &periodErr) {
		return ErrInvalidPeriod.WithCause(err).
			WithDetail("message", periodErr.Error())
	}

	return ErrInternal.WithCause(err)
}
