package domain

import (
	"errors"
	"fmt"
)

// Closed error set shared by the repository and service layers. Callers
// classify failures with errors.Is / errors.As, never by message matching.
var (
	// ErrNotFound covers notes (or versions) that are absent, deleted, or
	// owned by someone else. The three cases are deliberately
	// indistinguishable so ownership is never leaked.
	ErrNotFound = errors.New("note not found")

	// ErrConflict is the optimistic-concurrency failure: the stored version
	// no longer matches the version the caller last saw.
	ErrConflict = errors.New("note was modified by another request")

	// ErrSameVersion rejects a revert whose target is the current version.
	ErrSameVersion = errors.New("note is already at the requested version")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError reports a missing or empty required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func MissingField(field string) error {
	return &ValidationError{Field: field}
}
