package clientdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveAndLoad(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	ctx := context.Background()

	key := "hist_yahoo_BRK/B_2024-01-05"
	storedAt := time.UnixMilli(1704456000123)
	require.NoError(t, store.Save(ctx, Entry{Key: key, Value: []byte(`{"price":362.58}`), StoredAt: storedAt}))

	entry, ok, err := store.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, entry.Key)
	assert.JSONEq(t, `{"price":362.58}`, string(entry.Value))
	assert.Equal(t, storedAt.UnixMilli(), entry.StoredAt.UnixMilli())

	// Slash in key must not create subdirectories
	files, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.False(t, files[0].IsDir())
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_CorruptFileIsError(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.path("k"), []byte{0xc1, 0xff}, 0644))

	_, ok, err := store.Load(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestFileStore_DeleteOlderThan(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, Entry{Key: "old", Value: []byte(`1`), StoredAt: now.Add(-72 * time.Hour)}))
	require.NoError(t, store.Save(ctx, Entry{Key: "fresh", Value: []byte(`1`), StoredAt: now}))
	require.NoError(t, os.WriteFile(store.path("broken"), []byte("garbage"), 0644))

	deleted, err := store.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, ok, err := store.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
