// Package services implements the application service layer between
// the HTTP API and the domain packages. Services validate input, map
// storage errors to service errors, and coordinate the worker pool.
package services

import (
	"errors"
	"fmt"

	"github.com/kbforge/curator/pkg/storage"
)

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create a
	// duplicate entity.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when the operation is not legal in the
	// entity's current state.
	ErrConflict = errors.New("conflicting state")

	// ErrUnavailable is returned when a required downstream resource
	// (e.g. the run queue) cannot accept the operation right now.
	ErrUnavailable = errors.New("temporarily unavailable")
)

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap lets callers match ErrInvalidInput with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// mapStorageErr translates storage sentinel errors into service
// errors; anything else passes through.
func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		return ErrAlreadyExists
	case errors.Is(err, storage.ErrConflict):
		return ErrConflict
	}
	return err
}
