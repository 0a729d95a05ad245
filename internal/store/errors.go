package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// Unique index names referenced by ConflictError.Constraint.
const (
	UsersEmailIndex    = "users_email_lower_idx"
	UsersUsernameIndex = "users_username_lower_idx"
)

// ConflictError reports which unique constraint a write violated.
// It matches ErrConflict with errors.Is.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return "conflict on " + e.Constraint
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

const uniqueViolation = "23505"

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &ConflictError{Constraint: pqErr.Constraint}
	}
	return err
}
