// Package memory provides an in-process store.Store, suitable for
// tests and single-process agents.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/smallnest/agentgraph/store"
)

// MemoryStore implements store.Store with a mutex-guarded map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*store.Record
	byRun   map[string][]string
}

var _ store.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*store.Record),
		byRun:   make(map[string][]string),
	}
}

// Save stores a record, replacing any record with the same ID.
func (s *MemoryStore) Save(_ context.Context, record *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	if _, exists := s.records[record.ID]; !exists {
		s.byRun[record.RunID] = append(s.byRun[record.RunID], record.ID)
	}
	s.records[record.ID] = &cp
	return nil
}

// Load retrieves a record by ID.
func (s *MemoryStore) Load(_ context.Context, id string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

// List returns all records of a run, ordered by sequence.
func (s *MemoryStore) List(_ context.Context, runID string) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRun[runID]
	out := make([]*store.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(s.records, id)

	ids := s.byRun[r.RunID]
	for i, rid := range ids {
		if rid == id {
			s.byRun[r.RunID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes all records of a run.
func (s *MemoryStore) Clear(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byRun[runID] {
		delete(s.records, id)
	}
	delete(s.byRun, runID)
	return nil
}
