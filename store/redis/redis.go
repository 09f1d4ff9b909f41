// Package redis provides a Redis-backed store.Store for run history
// shared across processes, with optional TTL-based expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/agentgraph/store"
)

// RedisStore implements store.Store using Redis. Records live under
// "<prefix>record:<id>"; a set under "<prefix>run:<runID>:records"
// indexes each run.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.Store = (*RedisStore)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Prefix defaults to "agentgraph:".
	Prefix string

	// TTL expires records; 0 keeps them forever.
	TTL time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(opts Options) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "agentgraph:"
	}

	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}
}

// Close closes the client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) recordKey(id string) string {
	return fmt.Sprintf("%srecord:%s", s.prefix, id)
}

func (s *RedisStore) runKey(runID string) string {
	return fmt.Sprintf("%srun:%s:records", s.prefix, runID)
}

// Save stores a record, replacing any record with the same ID.
func (s *RedisStore) Save(ctx context.Context, record *store.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(record.ID), data, s.ttl)
	if record.RunID != "" {
		runKey := s.runKey(record.RunID)
		pipe.SAdd(ctx, runKey, record.ID)
		if s.ttl > 0 {
			pipe.Expire(ctx, runKey, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record to redis: %w", err)
	}
	return nil
}

// Load retrieves a record by ID.
func (s *RedisStore) Load(ctx context.Context, id string) (*store.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	var r store.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &r, nil
}

// List returns all records of a run, ordered by sequence.
func (s *RedisStore) List(ctx context.Context, runID string) ([]*store.Record, error) {
	ids, err := s.client.SMembers(ctx, s.runKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}

	out := make([]*store.Record, 0, len(ids))
	for _, id := range ids {
		r, err := s.Load(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Record expired; drop the stale index entry.
				s.client.SRem(ctx, s.runKey(runID), id)
				continue
			}
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// Delete removes a record.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	r, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.recordKey(id))
	if r.RunID != "" {
		pipe.SRem(ctx, s.runKey(r.RunID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear removes all records of a run.
func (s *RedisStore) Clear(ctx context.Context, runID string) error {
	ids, err := s.client.SMembers(ctx, s.runKey(runID)).Result()
	if err != nil {
		return fmt.Errorf("failed to clear run records: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.recordKey(id))
	}
	pipe.Del(ctx, s.runKey(runID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear run records: %w", err)
	}
	return nil
}
