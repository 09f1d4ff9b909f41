// Package postgres provides a PostgreSQL-backed store.Store for run
// history shared across processes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/agentgraph/store"
)

// DBPool is the connection-pool surface the store needs. pgxpool.Pool
// satisfies it, and so do pgxmock pools in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements store.Store using PostgreSQL.
type PostgresStore struct {
	pool      DBPool
	tableName string
}

var _ store.Store = (*PostgresStore)(nil)

// Options configures the Postgres connection.
type Options struct {
	ConnString string

	// TableName defaults to "run_records".
	TableName string
}

// NewPostgresStore connects and creates the schema.
func NewPostgresStore(ctx context.Context, opts Options) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := NewPostgresStoreWithPool(pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool wraps an existing pool, useful for tests.
// The caller owns schema creation.
func NewPostgresStoreWithPool(pool DBPool, tableName string) *PostgresStore {
	if tableName == "" {
		tableName = "run_records"
	}
	return &PostgresStore{pool: pool, tableName: tableName}
}

// InitSchema creates the table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			node_name TEXT NOT NULL,
			payload JSONB,
			sequence INTEGER NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Save stores a record, replacing any record with the same ID.
func (s *PostgresStore) Save(ctx context.Context, record *store.Record) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, node_name, payload, sequence, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			node_name = EXCLUDED.node_name,
			payload = EXCLUDED.payload,
			sequence = EXCLUDED.sequence,
			timestamp = EXCLUDED.timestamp
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		record.ID, record.RunID, record.NodeName, payload, record.Sequence, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load retrieves a record by ID.
func (s *PostgresStore) Load(ctx context.Context, id string) (*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_name, payload, sequence, timestamp
		FROM %s WHERE id = $1
	`, s.tableName)

	var r store.Record
	var payload []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.RunID, &r.NodeName, &payload, &r.Sequence, &r.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	if err := json.Unmarshal(payload, &r.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &r, nil
}

// List returns all records of a run, ordered by sequence.
func (s *PostgresStore) List(ctx context.Context, runID string) ([]*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_name, payload, sequence, timestamp
		FROM %s WHERE run_id = $1 ORDER BY sequence
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		var r store.Record
		var payload []byte
		if err := rows.Scan(&r.ID, &r.RunID, &r.NodeName, &payload, &r.Sequence, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Delete removes a record.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tableName)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// Clear removes all records of a run.
func (s *PostgresStore) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to clear run records: %w", err)
	}
	return nil
}
