package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a unique constraint,
// e.g. registering a username that is already taken.
var ErrDuplicate = errors.New("duplicate key")

// ErrInvalidReference is returned when a write violates a foreign key,
// e.g. addressing a message to a username that does not exist.
var ErrInvalidReference = errors.New("invalid reference")

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// classifyError maps recognized Postgres error codes onto the store's
// sentinel errors and passes everything else through untouched.
func classifyError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case sqlStateUniqueViolation:
		return ErrDuplicate
	case sqlStateForeignKeyViolation:
		return ErrInvalidReference
	default:
		return err
	}
}
