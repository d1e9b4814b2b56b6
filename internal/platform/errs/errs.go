// Package errs defines the error taxonomy shared by all ledger operations.
// Every operation fails with exactly one of these kinds; security-relevant
// checks fail closed and are never downgraded to a default value.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated indicates a passcode or session check failed.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAccessDenied indicates the authorization predicate was false.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound indicates a reference to an unknown principal, case,
	// record, grant, or activity entry.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates an operation illegal for the current state,
	// e.g. appending to a closed case or registering twice.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput indicates a malformed identifier or self-referential
	// target.
	ErrInvalidInput = errors.New("invalid input")
)

// Unauthenticated wraps ErrUnauthenticated with context.
func Unauthenticated(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthenticated)...)
}

// AccessDenied wraps ErrAccessDenied with context.
func AccessDenied(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrAccessDenied)...)
}

// NotFound wraps ErrNotFound with context.
func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// InvalidState wraps ErrInvalidState with context.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidState)...)
}

// InvalidInput wraps ErrInvalidInput with context.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}

// HTTPStatus maps a taxonomy error to its HTTP status code. Unclassified
// errors map to 500 so internal failures are never mistaken for a denial.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
