// Package memory provides an in-memory CallStore for testing and
// lightweight deployments. Records are lost when the process restarts.
// An optional size cap evicts the oldest records first.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/rhuss/relais/pkg/storage"
)

// Store is an in-memory CallStore with optional oldest-first eviction.
// The ledger is append-only, so age order is insertion order.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*storage.CallRecord
	byRequestID map[string]string
	ageList     *list.List // front = newest record, back = oldest
	maxSize     int        // 0 = unlimited
}

// Ensure Store implements storage.CallStore at compile time.
var _ storage.CallStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest record is evicted when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries:     make(map[string]*storage.CallRecord),
		byRequestID: make(map[string]string),
		ageList:     list.New(),
		maxSize:     maxSize,
	}
}

// Record stores a call record. A duplicate ID or request ID returns
// ErrConflict.
func (s *Store) Record(_ context.Context, rec *storage.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return storage.ErrConflict
	}
	if _, exists := s.byRequestID[rec.RequestID]; exists {
		return storage.ErrConflict
	}

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	s.ageList.PushFront(rec.ID)
	s.entries[rec.ID] = rec
	s.byRequestID[rec.RequestID] = rec.ID

	return nil
}

// Get retrieves a record by ledger ID.
func (s *Store) Get(_ context.Context, id string) (*storage.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// GetByRequestID retrieves a record by its wire correlation key.
func (s *Store) GetByRequestID(_ context.Context, requestID string) (*storage.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRequestID[requestID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.entries[id], nil
}

// List returns records newest first, filtered and paged by opts.
func (s *Store) List(_ context.Context, opts storage.ListOptions) ([]*storage.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Collect matching records.
	var matches []*storage.CallRecord
	for _, rec := range s.entries {
		if opts.Function != "" && rec.FunctionName != opts.Function {
			continue
		}
		if !opts.Before.IsZero() && !rec.CreatedAt.Before(opts.Before) {
			continue
		}
		matches = append(matches, rec)
	}

	// Newest first, record ID as tiebreak for a stable order.
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	limit := storage.ClampLimit(opts.Limit)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []*storage.CallRecord{}
	}

	return matches, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the oldest record.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.ageList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.ageList.Remove(back)
	if rec, ok := s.entries[id]; ok {
		delete(s.byRequestID, rec.RequestID)
	}
	delete(s.entries, id)
}
