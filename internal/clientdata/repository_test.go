package clientdata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE fact_cache (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, stored_at INTEGER NOT NULL);
CREATE INDEX idx_fact_cache_stored_at ON fact_cache(stored_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// One connection so every query sees the same in-memory database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestRepository_SaveAndLoad(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	storedAt := time.UnixMilli(1704456000000)

	err := repo.Save(ctx, Entry{Key: "hist_stooq_AAPL_2024-01-05", Value: []byte(`{"price":181.18}`), StoredAt: storedAt})
	require.NoError(t, err)

	entry, ok, err := repo.Load(ctx, "hist_stooq_AAPL_2024-01-05")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"price":181.18}`, string(entry.Value))
	assert.True(t, storedAt.Equal(entry.StoredAt))
}

func TestRepository_LoadMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, ok, err := NewRepository(db).Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_SaveReplaces(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, Entry{Key: "k", Value: []byte(`1`), StoredAt: time.UnixMilli(1000)}))
	require.NoError(t, repo.Save(ctx, Entry{Key: "k", Value: []byte(`2`), StoredAt: time.UnixMilli(2000)}))

	entry, ok, err := repo.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", string(entry.Value))
	assert.Equal(t, int64(2000), entry.StoredAt.UnixMilli())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_DeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, Entry{Key: "old1", Value: []byte(`1`), StoredAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.Save(ctx, Entry{Key: "old2", Value: []byte(`1`), StoredAt: now.Add(-25 * time.Hour)}))
	require.NoError(t, repo.Save(ctx, Entry{Key: "fresh", Value: []byte(`1`), StoredAt: now}))

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, ok, err := repo.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, Entry{Key: "k", Value: []byte(`1`), StoredAt: time.Now()}))
	require.NoError(t, repo.Delete(ctx, "k"))

	_, ok, err := repo.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_ClosedDBFailsOpenThroughCache(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	db.Close()

	cache, _ := newTestCache(t, repo, time.Hour)
	cache.SetBestEffort(context.Background(), "k", 1)

	var v int
	assert.False(t, cache.Get(context.Background(), "k", &v))
	assert.Equal(t, int64(1), cache.Stats().WriteFailures)
}
