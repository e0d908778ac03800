package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository is the SQLite-backed Store. It expects the fact_cache table
// created by the database package schema.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new fact cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Load returns the entry for key, or ok=false if it was never stored.
func (r *Repository) Load(ctx context.Context, key string) (Entry, bool, error) {
	var (
		data     string
		storedAt int64
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT data, stored_at FROM fact_cache WHERE cache_key = ?",
		key,
	).Scan(&data, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to load cache entry %s: %w", key, err)
	}

	return Entry{
		Key:      key,
		Value:    []byte(data),
		StoredAt: time.UnixMilli(storedAt),
	}, true, nil
}

// Save upserts the entry. A single statement keeps the write atomic for readers.
func (r *Repository) Save(ctx context.Context, entry Entry) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO fact_cache (cache_key, data, stored_at) VALUES (?, ?, ?)",
		entry.Key, string(entry.Value), entry.StoredAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", entry.Key, err)
	}
	return nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM fact_cache WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteOlderThan removes all rows written before cutoff.
// Returns the number of rows deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM fact_cache WHERE stored_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old cache entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of stored entries, fresh or not.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fact_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}
