package clientdata_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketfacts/internal/clientdata"
	testingutil "github.com/aristath/marketfacts/internal/testing"
)

// Runs the repository against the embedded schema and the production driver
func TestRepository_EmbeddedSchema(t *testing.T) {
	db := testingutil.NewTestDB(t, "fact_cache")
	repo := clientdata.NewRepository(db.Conn())

	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	cache := clientdata.NewCache(repo, 24*time.Hour, zerolog.Nop(), clientdata.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	cache.SetBestEffort(ctx, "hist_yahoo_AAPL_2024-01-05", map[string]interface{}{"price": 181.18, "source": "yahoo_chart"})

	var got struct {
		Price  float64 `json:"price"`
		Source string  `json:"source"`
	}
	require.True(t, cache.Get(ctx, "hist_yahoo_AAPL_2024-01-05", &got))
	assert.Equal(t, 181.18, got.Price)
	assert.Equal(t, "yahoo_chart", got.Source)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	job := clientdata.NewCleanupJob(repo, time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "entry stamped with the pinned 2024 clock is past retention")
}
