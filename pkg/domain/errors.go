// Package domain holds the error vocabulary shared by every bounded context of
// the checkout service.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. DomainError.Err is always one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state transition")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream dependency failed")
)

// DomainError is a categorised error that the transport layer can map onto a
// status code without knowing which module produced it.
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]any
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewConflictError reports a lost optimistic-concurrency race or a uniqueness violation.
func NewConflictError(message string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: message}
}

// NewValidationError reports bad caller input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: message}
}

// NewForbiddenError reports an authenticated caller acting on a resource it does not own.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Err: ErrForbidden, Message: message}
}

// NewUpstreamError wraps a failure of an external collaborator.
func NewUpstreamError(message string, cause error) *DomainError {
	return &DomainError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s: %v", message, cause),
	}
}

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
