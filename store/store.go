// Package store defines persistence for agent run history: one Record
// per node transition, keyed by run id. Backends exist for memory,
// SQLite, Redis and PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record id is unknown.
var ErrNotFound = errors.New("record not found")

// Record is one persisted node transition of a run.
type Record struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// RunID groups the records of one agent run.
	RunID string `json:"run_id"`

	// NodeName is the node whose execution produced this record.
	NodeName string `json:"node_name"`

	// Payload is the node output serialized as JSON.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Sequence orders records within a run.
	Sequence int `json:"sequence"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// Store persists run history records.
type Store interface {
	// Save stores a record, replacing any record with the same ID.
	Save(ctx context.Context, record *Record) error

	// Load retrieves a record by ID.
	Load(ctx context.Context, id string) (*Record, error)

	// List returns all records of a run, ordered by sequence.
	List(ctx context.Context, runID string) ([]*Record, error)

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	// Clear removes all records of a run.
	Clear(ctx context.Context, runID string) error
}
