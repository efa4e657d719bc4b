package services

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services. Handlers map these to HTTP codes.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrExamNotActive       = errors.New("exam is not active")
	ErrSubmissionClosed    = errors.New("answer submission window is closed")
	ErrAlreadySubmitted    = errors.New("subject answers already confirmed")
	ErrAlreadyRegistered   = errors.New("already registered for this exam")
	ErrNotRegistered       = errors.New("not registered for this exam")
	ErrInvalidOption       = errors.New("answer outside the option range")
	ErrAnswerCountMismatch = errors.New("answer count does not match the subject problem count")
)

// ValidationError carries a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is a field validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
