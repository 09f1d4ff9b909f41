package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/store"
)

func newTestStore(t *testing.T, opts Options) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	opts.Addr = mr.Addr()
	s := NewRedisStore(opts)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func testRecord(id, runID string, seq int) *store.Record {
	return &store.Record{
		ID:        id,
		RunID:     runID,
		NodeName:  "think",
		Payload:   []byte(`{"answer":42}`),
		Sequence:  seq,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

func TestRedisStoreSaveLoad(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	rec := testRecord("a", "r1", 1)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, rec.Sequence, got.Sequence)
	assert.JSONEq(t, `{"answer":42}`, string(got.Payload))
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	s, mr := newTestStore(t, Options{Prefix: "myapp:"})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord("a", "r1", 1)))

	assert.True(t, mr.Exists("myapp:record:a"))
	assert.True(t, mr.Exists("myapp:run:r1:records"))
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	s, mr := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord("a", "r1", 1)))
	assert.True(t, mr.Exists("agentgraph:record:a"))
}

func TestRedisStoreListOrdered(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord("c", "r1", 3)))
	require.NoError(t, s.Save(ctx, testRecord("a", "r1", 1)))
	require.NoError(t, s.Save(ctx, testRecord("b", "r1", 2)))
	require.NoError(t, s.Save(ctx, testRecord("x", "r2", 1)))

	records, err := s.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{records[0].ID, records[1].ID, records[2].ID})
}

func TestRedisStoreNotFound(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "missing"), store.ErrNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	s, mr := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord("a", "r1", 1)))
	require.NoError(t, s.Delete(ctx, "a"))

	_, err := s.Load(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The run index entry goes with the record.
	members, _ := mr.SMembers("agentgraph:run:r1:records")
	assert.Empty(t, members)
}

func TestRedisStoreClear(t *testing.T) {
	s, mr := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord("a", "r1", 1)))
	require.NoError(t, s.Save(ctx, testRecord("b", "r1", 2)))
	require.NoError(t, s.Save(ctx, testRecord("x", "r2", 1)))

	require.NoError(t, s.Clear(ctx, "r1"))

	records, err := s.List(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.False(t, mr.Exists("agentgraph:run:r1:records"))

	records, err = s.List(ctx, "r2")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	s, mr := newTestStore(t, Options{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord("a", "r1", 1)))

	mr.FastForward(2 * time.Minute)

	_, err := s.Load(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisStoreListSkipsExpiredRecords(t *testing.T) {
	s, mr := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord("a", "r1", 1)))
	require.NoError(t, s.Save(ctx, testRecord("b", "r1", 2)))

	// Simulate an expired record with a stale index entry.
	mr.Del("agentgraph:record:a")

	records, err := s.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)
}
