package storage

import "errors"

// Sentinel errors for ledger operations.
var (
	// ErrNotFound is returned when no call record matches the lookup.
	ErrNotFound = errors.New("call record not found")

	// ErrConflict is returned when a record with the same ID or
	// request ID has already been stored.
	ErrConflict = errors.New("call record already exists")
)
