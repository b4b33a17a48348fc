package store

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when a note is created with no usable text
	ErrEmptyText = errors.New("note text is empty")
	// ErrMalformedImport is returned when an import payload is not valid JSON.
	// The store is left unchanged.
	ErrMalformedImport = errors.New("malformed import payload")
)

// PersistError reports that an in-memory mutation succeeded but the durable
// write failed. The in-memory state is authoritative for the session; the
// next successful mutation writes the collections wholesale again.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError reports whether err is a persistence failure, as opposed to
// a validation failure that left the store untouched.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}
