package clientdata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const fileStoreExt = ".msgpack"

// fileEnvelope is the on-disk record. The value stays JSON inside the envelope.
type fileEnvelope struct {
	Key      string `msgpack:"key"`
	Value    []byte `msgpack:"value"`
	StoredAt int64  `msgpack:"stored_at"` // unix milliseconds
}

// FileStore keeps one msgpack file per key under dir.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileStoreExt)
}

func (s *FileStore) Load(_ context.Context, key string) (Entry, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache file for %s: %w", key, err)
	}

	var env fileEnvelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache file for %s: %w", key, err)
	}

	return Entry{
		Key:      key,
		Value:    env.Value,
		StoredAt: time.UnixMilli(env.StoredAt),
	}, true, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so a concurrent reader sees either the old or the new file.
func (s *FileStore) Save(_ context.Context, entry Entry) error {
	raw, err := msgpack.Marshal(&fileEnvelope{
		Key:      entry.Key,
		Value:    entry.Value,
		StoredAt: entry.StoredAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", entry.Key, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry %s: %w", entry.Key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close cache entry %s: %w", entry.Key, err)
	}
	if err := os.Rename(tmpName, s.path(entry.Key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit cache entry %s: %w", entry.Key, err)
	}

	return nil
}

// DeleteOlderThan removes entries stored before cutoff. Unreadable files are removed too.
func (s *FileStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	var deleted int64
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), fileStoreExt) {
			continue
		}
		path := filepath.Join(s.dir, f.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var env fileEnvelope
		if err := msgpack.Unmarshal(raw, &env); err == nil && !time.UnixMilli(env.StoredAt).Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err == nil {
			deleted++
		}
	}

	return deleted, nil
}
