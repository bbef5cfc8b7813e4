package storage

import (
	"context"
	"time"
)

// List paging bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CallRecord is one completed invocation as the ledger keeps it. ID is
// the ledger's own key; RequestID is the correlation key the wire
// protocol used, unique across the store.
type CallRecord struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"request_id"`
	FunctionName string         `json:"function_name"`
	FunctionKind string         `json:"function_kind"`
	CallerName   string         `json:"caller_name"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Message      string         `json:"message"`
	IsError      bool           `json:"is_error"`
	DurationMS   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ListOptions narrows and pages List results.
type ListOptions struct {
	// Function restricts results to one function name. Empty matches all.
	Function string

	// Limit caps the number of records returned. Zero means
	// DefaultListLimit; values above MaxListLimit are clamped.
	Limit int

	// Before restricts results to records created strictly before this
	// instant. The zero time means no bound. Combined with newest-first
	// ordering this pages backwards through history.
	Before time.Time
}

// CallStore persists completed invocations.
//
// Implementations must treat a duplicate request ID as ErrConflict so
// that one invocation can never appear in the ledger twice, and must be
// safe for concurrent use.
type CallStore interface {
	// Record stores a completed call. A record whose ID or RequestID is
	// already present returns ErrConflict.
	Record(ctx context.Context, rec *CallRecord) error

	// Get retrieves a record by ledger ID.
	Get(ctx context.Context, id string) (*CallRecord, error)

	// GetByRequestID retrieves a record by its wire correlation key.
	GetByRequestID(ctx context.Context, requestID string) (*CallRecord, error)

	// List returns records newest first, filtered and paged by opts.
	List(ctx context.Context, opts ListOptions) ([]*CallRecord, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ClampLimit resolves a requested page size against the shared bounds.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
