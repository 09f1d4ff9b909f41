// Package sqlite provides a SQLite-backed store.Store: a serverless,
// file-based backend for persisting run history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/agentgraph/store"
)

// SqliteStore implements store.Store using SQLite.
type SqliteStore struct {
	db        *sql.DB
	tableName string
}

var _ store.Store = (*SqliteStore)(nil)

// Options configures the SQLite connection.
type Options struct {
	// Path is the database file path, or ":memory:" for a volatile db.
	Path string

	// TableName defaults to "run_records".
	TableName string
}

// NewSqliteStore opens the database and creates the schema.
func NewSqliteStore(opts Options) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "run_records"
	}

	s := &SqliteStore{db: db, tableName: tableName}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			node_name TEXT NOT NULL,
			payload TEXT,
			sequence INTEGER NOT NULL,
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Save stores a record, replacing any record with the same ID.
func (s *SqliteStore) Save(ctx context.Context, record *store.Record) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, node_name, payload, sequence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			node_name = excluded.node_name,
			payload = excluded.payload,
			sequence = excluded.sequence,
			timestamp = excluded.timestamp
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.RunID,
		record.NodeName,
		string(payload),
		record.Sequence,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load retrieves a record by ID.
func (s *SqliteStore) Load(ctx context.Context, id string) (*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_name, payload, sequence, timestamp
		FROM %s WHERE id = ?
	`, s.tableName)

	var r store.Record
	var payload string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.RunID, &r.NodeName, &payload, &r.Sequence, &r.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &r, nil
}

// List returns all records of a run, ordered by sequence.
func (s *SqliteStore) List(ctx context.Context, runID string) ([]*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_name, payload, sequence, timestamp
		FROM %s WHERE run_id = ? ORDER BY sequence
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		var r store.Record
		var payload string
		if err := rows.Scan(&r.ID, &r.RunID, &r.NodeName, &payload, &r.Sequence, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Delete removes a record.
func (s *SqliteStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.tableName)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// Clear removes all records of a run.
func (s *SqliteStore) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to clear run records: %w", err)
	}
	return nil
}
