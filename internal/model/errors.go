package model

import "errors"

// Common errors used across the application
var (
	// Roster errors
	ErrRosterNotFound = errors.New("roster not found")

	// Player errors
	ErrPlayerNotFound = errors.New("player not found")

	// Gear errors
	ErrGearChoiceNotFound = errors.New("gear choice not found")

	// ErrTransient marks a call to the server that did not complete
	ErrTransient = errors.New("transient network error")
)

// ValidationError is returned when an intent is rejected before reaching storage
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
