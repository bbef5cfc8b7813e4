// Package redis provides a Redis implementation of storage.CallStore.
// Records are stored as JSON values with a ZSET index scored by creation
// time for newest-first listing. An optional TTL ages records out.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/rhuss/relais/pkg/storage"
)

const keyPrefix = "relais:call:"

// Config holds Redis connection and behavior settings.
type Config struct {
	// Addr is the Redis host:port.
	Addr string

	// Password authenticates the connection. Empty means no AUTH.
	Password string

	// DB selects the logical database (default: 0).
	DB int

	// TTL expires records after this duration. Zero keeps them forever.
	TTL time.Duration
}

// Store is a Redis-backed CallStore.
type Store struct {
	client *backend.Client
	ttl    time.Duration
}

// Ensure Store implements storage.CallStore at compile time.
var _ storage.CallStore = (*Store)(nil)

// New creates a new Redis store with the given configuration.
func New(cfg Config) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewFromClient(client, cfg.TTL)
}

// NewFromClient creates a Redis store from an existing client. The
// store takes ownership; Close closes the client.
func NewFromClient(client *backend.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) callKey(id string) string {
	return keyPrefix + id
}

func (s *Store) requestKey(requestID string) string {
	return keyPrefix + "req:" + requestID
}

func (s *Store) indexKey() string {
	return keyPrefix + "index"
}

func (s *Store) functionKey(name string) string {
	return keyPrefix + "fn:" + name
}

// Record stores a completed call. The request ID is claimed with SETNX
// first; losing that claim means the call was already recorded.
func (s *Store) Record(ctx context.Context, rec *storage.CallRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling call record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.requestKey(rec.RequestID), rec.ID, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("claiming request ID: %w", err)
	}
	if !ok {
		return storage.ErrConflict
	}

	ok, err = s.client.SetNX(ctx, s.callKey(rec.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("saving call record: %w", err)
	}
	if !ok {
		// The ledger ID collided. Release the request claim so a
		// retry under a fresh ID can succeed.
		s.client.Del(ctx, s.requestKey(rec.RequestID))
		return storage.ErrConflict
	}

	// Index for newest-first listing, globally and per function.
	score := float64(rec.CreatedAt.UnixMicro())
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: rec.ID})
	pipe.ZAdd(ctx, s.functionKey(rec.FunctionName), backend.Z{Score: score, Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexing call record: %w", err)
	}

	return nil
}

// Get retrieves a record by ledger ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.CallRecord, error) {
	val, err := s.client.Get(ctx, s.callKey(id)).Result()
	if errors.Is(err, backend.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading call record: %w", err)
	}

	return decodeRecord([]byte(val))
}

// GetByRequestID retrieves a record by its wire correlation key.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*storage.CallRecord, error) {
	id, err := s.client.Get(ctx, s.requestKey(requestID)).Result()
	if errors.Is(err, backend.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving request ID: %w", err)
	}

	return s.Get(ctx, id)
}

// List returns records newest first, filtered and paged by opts.
// Index members whose values have expired are pruned lazily.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.CallRecord, error) {
	index := s.indexKey()
	if opts.Function != "" {
		index = s.functionKey(opts.Function)
	}

	max := "+inf"
	if !opts.Before.IsZero() {
		max = "(" + strconv.FormatInt(opts.Before.UnixMicro(), 10)
	}

	ids, err := s.client.ZRevRangeByScore(ctx, index, &backend.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: int64(storage.ClampLimit(opts.Limit)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("listing call records: %w", err)
	}

	records := []*storage.CallRecord{}
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.callKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading call records: %w", err)
	}

	var expired []any
	for i, val := range vals {
		raw, ok := val.(string)
		if !ok {
			// Value aged out but the index member lingered.
			expired = append(expired, ids[i])
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(expired) > 0 {
		pipe := s.client.Pipeline()
		pipe.ZRem(ctx, s.indexKey(), expired...)
		if opts.Function != "" {
			pipe.ZRem(ctx, index, expired...)
		}
		pipe.Exec(ctx)
	}

	return records, nil
}

// HealthCheck verifies the Redis connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decodeRecord(data []byte) (*storage.CallRecord, error) {
	var rec storage.CallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling call record: %w", err)
	}
	return &rec, nil
}
