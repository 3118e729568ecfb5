// ABOUTME: Tests for store-URI parsing and backend construction
// ABOUTME: Covers mem and sqlite schemes plus malformed URIs

package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-sessions/internal/docstore"
)

func TestOpenStore_Memory(t *testing.T) {
	store, err := OpenStore("mem://")
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &docstore.MemoryStore{}, store)
}

func TestOpenStore_SQLiteFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	store, err := OpenStore("sqlite://" + dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &docstore.SQLiteStore{}, store)
	require.NoError(t, store.Set(context.Background(), "applications/demo", docstore.Document{"a": 1}))
}

func TestOpenStore_SQLiteInMemory(t *testing.T) {
	store, err := OpenStore("sqlite::memory:")
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &docstore.SQLiteStore{}, store)
	require.NoError(t, store.Set(context.Background(), "applications/demo", docstore.Document{"a": 1}))
}

func TestOpenStore_SQLiteMissingPath(t *testing.T) {
	_, err := OpenStore("sqlite://")
	assert.Error(t, err)
}

func TestOpenStore_UnsupportedScheme(t *testing.T) {
	_, err := OpenStore("postgres://localhost/sessions")
	assert.Error(t, err)
}

func TestOpenStore_NoScheme(t *testing.T) {
	_, err := OpenStore("just-a-path")
	assert.Error(t, err)
}

func TestOpen_BuildsService(t *testing.T) {
	svc, err := Open("mem://", WithDeletePageSize(10))
	require.NoError(t, err)
	defer svc.Close()

	sess, err := svc.Create(context.Background(), "demo", "ann", nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
}
