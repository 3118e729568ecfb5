// ABOUTME: Tests for the in-memory Store implementation
// ABOUTME: Covers point operations, queries, and batch atomicity

package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc := Document{"name": "ann", "count": int64(3), "nested": map[string]any{"k": "v"}}
	require.NoError(t, store.Set(ctx, "applications/demo", doc))

	got, err := store.Get(ctx, "applications/demo")
	require.NoError(t, err)
	assert.Equal(t, "ann", got["name"])
	assert.Equal(t, int64(3), got["count"])

	// Returned document is a copy, not an alias
	got["name"] = "changed"
	again, err := store.Get(ctx, "applications/demo")
	require.NoError(t, err)
	assert.Equal(t, "ann", again["name"])
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "applications/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RejectsMalformedPaths(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Collection path where a document path is required
	_, err := store.Get(ctx, "applications")
	assert.Error(t, err)

	err = store.Set(ctx, "applications//users/u", Document{})
	assert.Error(t, err)

	// Document path where a collection path is required
	_, err = store.Query(ctx, "applications/demo", Query{OrderBy: "ts"})
	assert.Error(t, err)
}

func TestMemoryStore_MergePreservesUnrelatedFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "applications/demo", Document{"a": 1, "b": 2}))
	require.NoError(t, store.Merge(ctx, "applications/demo", Document{"b": 20, "c": 30}))

	got, err := store.Get(ctx, "applications/demo")
	require.NoError(t, err)
	assert.Equal(t, 1, got["a"])
	assert.Equal(t, 20, got["b"])
	assert.Equal(t, 30, got["c"])
}

func TestMemoryStore_MergeCreatesMissingDocument(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "applications/demo", Document{"a": 1}))

	got, err := store.Get(ctx, "applications/demo")
	require.NoError(t, err)
	assert.Equal(t, 1, got["a"])
}

func TestMemoryStore_UpdateDottedPath(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc := Document{"state": map[string]any{"x": 1, "y": 2}, "ts": int64(5)}
	require.NoError(t, store.Set(ctx, "sessions/s1", doc))

	err := store.Update(ctx, "sessions/s1", Document{"state.x": 10, "ts": int64(6)})
	require.NoError(t, err)

	got, err := store.Get(ctx, "sessions/s1")
	require.NoError(t, err)
	state := got["state"].(map[string]any)
	assert.Equal(t, 10, state["x"])
	assert.Equal(t, 2, state["y"], "unrelated nested field untouched")
	assert.Equal(t, int64(6), got["ts"])
}

func TestMemoryStore_UpdateMissingDocument(t *testing.T) {
	store := NewMemoryStore()

	err := store.Update(context.Background(), "sessions/nope", Document{"a": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sessions/s1", Document{"a": 1}))
	require.NoError(t, store.Delete(ctx, "sessions/s1"))
	require.NoError(t, store.Delete(ctx, "sessions/s1"))

	_, err := store.Get(ctx, "sessions/s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_QueryOrderFilterLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i, ts := range []int64{30, 10, 20, 40} {
		path := "logs/e" + string(rune('a'+i))
		require.NoError(t, store.Set(ctx, path, Document{"ts": ts}))
	}
	// A document in a different collection must not leak in
	require.NoError(t, store.Set(ctx, "other/e1", Document{"ts": int64(15)}))

	snaps, err := store.Query(ctx, "logs", Query{OrderBy: "ts"})
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	assert.Equal(t, int64(10), snaps[0].Doc["ts"])
	assert.Equal(t, int64(40), snaps[3].Doc["ts"])

	snaps, err = store.Query(ctx, "logs", Query{
		OrderBy:   "ts",
		Direction: Descending,
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(40), snaps[0].Doc["ts"])
	assert.Equal(t, int64(30), snaps[1].Doc["ts"])

	snaps, err = store.Query(ctx, "logs", Query{
		OrderBy: "ts",
		Filter:  &Filter{Field: "ts", Op: ">", Value: int64(20)},
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(30), snaps[0].Doc["ts"])
	assert.Equal(t, int64(40), snaps[1].Doc["ts"])
}

func TestMemoryStore_QueryRequiresOrderBy(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Query(context.Background(), "logs", Query{})
	assert.Error(t, err)
}

func TestMemoryStore_BatchCommitsAllWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sessions/s1", Document{"state": map[string]any{}, "ts": int64(1)}))

	batch := store.Batch()
	batch.Set("sessions/s1/events/e1", Document{"id": "e1", "ts": int64(2)})
	batch.Merge("applications/demo", Document{"counter": 1})
	batch.Update("sessions/s1", Document{"state.x": "v", "ts": int64(2)})
	require.NoError(t, batch.Commit(ctx))

	evt, err := store.Get(ctx, "sessions/s1/events/e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", evt["id"])

	app, err := store.Get(ctx, "applications/demo")
	require.NoError(t, err)
	assert.Equal(t, 1, app["counter"])

	sess, err := store.Get(ctx, "sessions/s1")
	require.NoError(t, err)
	assert.Equal(t, "v", sess["state"].(map[string]any)["x"])
}

func TestMemoryStore_BatchIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	batch := store.Batch()
	batch.Set("sessions/s1/events/e1", Document{"id": "e1"})
	batch.Update("sessions/missing", Document{"ts": int64(9)})

	err := batch.Commit(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	// The failed batch must leave nothing behind
	_, err = store.Get(ctx, "sessions/s1/events/e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_BatchUpdateSeesEarlierBatchSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	batch := store.Batch()
	batch.Set("sessions/s1", Document{"state": map[string]any{}})
	batch.Update("sessions/s1", Document{"ts": int64(7)})
	require.NoError(t, batch.Commit(ctx))

	got, err := store.Get(ctx, "sessions/s1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got["ts"])
}
