package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the persistence medium could not be opened.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound marks a missing record. Only lookups return it; deletes
	// of absent records are silent no-ops.
	ErrNotFound = errors.New("record not found")

	errRead  = errors.New("read error")
	errWrite = errors.New("write error")
)

// ReadError wraps an operation-level read failure from the medium.
func ReadError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errRead, err)
}

// WriteError wraps an operation-level write failure from the medium.
func WriteError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errWrite, err)
}

// IsReadError reports whether err is an operation-level read failure.
func IsReadError(err error) bool {
	return errors.Is(err, errRead)
}

// IsWriteError reports whether err is an operation-level write failure.
func IsWriteError(err error) bool {
	return errors.Is(err, errWrite)
}
