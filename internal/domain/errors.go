// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// Every field-level error below wraps it, so callers can test for any
	// validation failure with errors.Is(err, ErrValidation).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = fmt.Errorf("%w: invalid ID", ErrValidation)

	// ErrEmptyTitle is returned when a task title is empty or whitespace-only.
	ErrEmptyTitle = fmt.Errorf("%w: title cannot be empty", ErrValidation)

	// ErrEmptyDescription is returned when a task description is empty or whitespace-only.
	ErrEmptyDescription = fmt.Errorf("%w: description cannot be empty", ErrValidation)

	// ErrInvalidTaskStatus is returned when a status is not one of the canonical values.
	ErrInvalidTaskStatus = fmt.Errorf("%w: invalid task status", ErrValidation)

	// ErrInvalidPagination is returned when skip is negative or limit is not positive.
	ErrInvalidPagination = fmt.Errorf("%w: invalid pagination bounds", ErrValidation)

	// ErrNullField is returned when a partial update explicitly sets a field to null.
	ErrNullField = fmt.Errorf("%w: field cannot be null", ErrValidation)
)

// ValidationError describes a validation failure on a single field.
type ValidationError struct {
	Field   string // The field that failed validation (e.g., "title")
	Message string // Human readable description
	Err     error  // Underlying sentinel error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel so errors.Is keeps working.
func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrValidation
	}
	return e.Err
}

// NewValidationError creates a ValidationError for the given field.
// If err is nil the error wraps ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsValidationError reports whether err is any kind of validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
