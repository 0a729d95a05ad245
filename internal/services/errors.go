package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password, without telling which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")

	// ErrDeckNotFound is returned when a routine names a deck the caller
	// does not own, whether or not it exists.
	ErrDeckNotFound = errors.New("deck not found or unauthorized")

	// ErrNotInitialized is returned by a two-phase publish whose value is not
	// in the caller's current permit set.
	ErrNotInitialized = errors.New("not initialized")
)

// ValidationError reports a malformed or missing request field. Message is
// safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
