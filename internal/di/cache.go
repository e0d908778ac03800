package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/config"
	"github.com/aristath/marketfacts/internal/database"
)

// InitializeCache opens the configured cache backend and wraps it in the fact cache
func InitializeCache(container *Container, cfg *config.Config, log zerolog.Logger) error {
	var store clientdata.Store

	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, "fact_cache.db"),
			Profile: database.ProfileCache,
			Name:    "fact_cache",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize fact cache database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("failed to migrate fact cache database: %w", err)
		}
		container.CacheDB = db
		store = clientdata.NewRepository(db.Conn())

	case config.CacheBackendFile:
		fileStore, err := clientdata.NewFileStore(filepath.Join(cfg.DataDir, "fact_cache"))
		if err != nil {
			return fmt.Errorf("failed to initialize file cache: %w", err)
		}
		store = fileStore

	case config.CacheBackendMemory:
		store = clientdata.NewMemoryStore()

	case config.CacheBackendS3:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		objectStore, err := clientdata.NewObjectStoreFromConfig(ctx, clientdata.ObjectStoreConfig{
			Bucket:          cfg.Cache.S3.Bucket,
			Endpoint:        cfg.Cache.S3.Endpoint,
			Region:          cfg.Cache.S3.Region,
			AccessKeyID:     cfg.Cache.S3.AccessKeyID,
			SecretAccessKey: cfg.Cache.S3.SecretAccessKey,
			Prefix:          cfg.Cache.S3.Prefix,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize object store cache: %w", err)
		}
		store = objectStore

	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	container.CacheStore = store
	container.Cache = clientdata.NewCache(store, cfg.Cache.TTL, log)

	log.Info().
		Str("backend", cfg.Cache.Backend).
		Dur("ttl", cfg.Cache.TTL).
		Msg("Fact cache initialized")

	return nil
}
