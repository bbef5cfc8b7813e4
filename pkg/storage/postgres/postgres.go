// Package postgres provides a PostgreSQL implementation of storage.CallStore.
// It uses pgx/v5 for connection pooling and JSONB for call parameters.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/relais/pkg/storage"
)

// Store is a PostgreSQL-backed CallStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.CallStore at compile time.
var _ storage.CallStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Record inserts a completed call. A duplicate ID or request ID is
// rejected by the table's unique constraints and reported as
// storage.ErrConflict.
func (s *Store) Record(ctx context.Context, rec *storage.CallRecord) error {
	var paramsJSON []byte
	if rec.Parameters != nil {
		var err error
		paramsJSON, err = json.Marshal(rec.Parameters)
		if err != nil {
			return fmt.Errorf("marshaling parameters: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO calls (
			id, request_id, function_name, function_kind, caller_name,
			parameters, message, is_error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.ID, rec.RequestID, rec.FunctionName, rec.FunctionKind, rec.CallerName,
		nullJSON(paramsJSON), rec.Message, rec.IsError, rec.DurationMS, rec.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting call record: %w", err)
	}

	return nil
}

// Get retrieves a record by ledger ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.CallRecord, error) {
	return s.getWhere(ctx, "id = $1", id)
}

// GetByRequestID retrieves a record by its wire correlation key.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*storage.CallRecord, error) {
	return s.getWhere(ctx, "request_id = $1", requestID)
}

// getWhere runs the single-record query with the given predicate.
func (s *Store) getWhere(ctx context.Context, predicate string, arg any) (*storage.CallRecord, error) {
	query := `
		SELECT id, request_id, function_name, function_kind, caller_name,
		       parameters, message, is_error, duration_ms, created_at
		FROM calls
		WHERE ` + predicate

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying call record: %w", err)
	}
	return rec, nil
}

// List returns records newest first, filtered and paged by opts.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.CallRecord, error) {
	var (
		conds []string
		args  []any
	)
	if opts.Function != "" {
		args = append(args, opts.Function)
		conds = append(conds, fmt.Sprintf("function_name = $%d", len(args)))
	}
	if !opts.Before.IsZero() {
		args = append(args, opts.Before)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `
		SELECT id, request_id, function_name, function_kind, caller_name,
		       parameters, message, is_error, duration_ms, created_at
		FROM calls
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, storage.ClampLimit(opts.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing call records: %w", err)
	}
	defer rows.Close()

	records := []*storage.CallRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing call records: %w", err)
	}

	return records, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanRecord reads one row in the shared column order.
func scanRecord(row pgx.Row) (*storage.CallRecord, error) {
	var (
		rec        storage.CallRecord
		paramsJSON *[]byte
		createdAt  time.Time
	)

	err := row.Scan(
		&rec.ID, &rec.RequestID, &rec.FunctionName, &rec.FunctionKind, &rec.CallerName,
		&paramsJSON, &rec.Message, &rec.IsError, &rec.DurationMS, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = createdAt.UTC()

	if paramsJSON != nil {
		if err := json.Unmarshal(*paramsJSON, &rec.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshaling parameters: %w", err)
		}
	}

	return &rec, nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
