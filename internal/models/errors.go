package models

import "errors"

var (
	// ErrNotFound covers both missing records and records owned by someone
	// else; callers cannot tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a unique username or email is taken.
	ErrDuplicateKey = errors.New("duplicate key")
)

// ValidationError is a user-correctable input problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}
