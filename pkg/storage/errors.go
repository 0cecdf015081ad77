package storage

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgreSQL error classes relevant at the write boundary.
const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")
	notNullViolation    = pq.ErrorCode("23502")
)

// StorageError is a uniqueness or referential-integrity violation surfaced
// at flush time. It carries the original driver message and, when the
// violated constraint is registered, the offending field's location, so the
// calling layer can respond with a client error instead of leaking a raw
// driver failure.
type StorageError struct {
	Message  string
	Location string
	Err      error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("storage error at %s: %s", e.Location, e.Message)
	}
	return "storage error: " + e.Message
}

// Unwrap exposes the underlying driver error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConstraintLocations maps database constraint names to the field location
// reported in a StorageError, e.g. "accounts_type_value_key" -> "accounts".
// Registered per entity alongside its table definition, so join requirements
// and error locations are both determined statically.
type ConstraintLocations map[string]string

// TranslateError converts integrity violations raised by the driver into a
// *StorageError. Any other error is returned unchanged. This is the single
// point where raw driver errors are allowed to cross into typed territory.
func TranslateError(err error, locations ConstraintLocations) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case uniqueViolation, foreignKeyViolation, notNullViolation:
	default:
		return err
	}
	location := locations[pqErr.Constraint]
	if location == "" && pqErr.Column != "" {
		location = pqErr.Column
	}
	return &StorageError{
		Message:  pqErr.Message,
		Location: location,
		Err:      err,
	}
}
