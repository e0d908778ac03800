package twelvedata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/domain"
	"github.com/aristath/marketfacts/internal/marketdata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, body string) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "1day", r.URL.Query().Get("interval"))
		assert.Equal(t, "UTC", r.URL.Query().Get("timezone"))
		assert.Equal(t, "5000", r.URL.Query().Get("outputsize"))
		assert.Equal(t, "td-key", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	cache := clientdata.NewCache(clientdata.NewMemoryStore(), time.Hour, zerolog.Nop())
	return NewClient("td-key", cache, zerolog.Nop(), WithBaseURL(server.URL)), &calls
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewClient("", nil, zerolog.Nop()).Configured())
	assert.True(t, NewClient("k", nil, zerolog.Nop()).Configured())
}

func TestHistoricalClose(t *testing.T) {
	client, calls := newTestClient(t, `{
		"meta": {"symbol":"AAPL","interval":"1day"},
		"values": [
			{"datetime":"2024-01-05","open":"181.99","close":"181.18"},
			{"datetime":"2024-01-04","open":"182.15","price":"181.91"}
		],
		"status": "ok"
	}`)
	ctx := context.Background()

	price, err := client.HistoricalClose(ctx, "AAPL", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 181.18, price.Price)
	assert.Equal(t, domain.SourceTwelveData, price.Source)

	price, err = client.HistoricalClose(ctx, "AAPL", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 181.91, price.Price)

	_, err = client.HistoricalClose(ctx, "AAPL", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, "[TWELVEDATA] no data for date", err.Error())

	assert.Equal(t, int32(1), calls.Load())
}

func TestHistoricalClose_StatusError(t *testing.T) {
	client, _ := newTestClient(t, `{"code":404,"message":"**symbol** not found: ZZZZ","status":"error"}`)

	_, err := client.HistoricalClose(context.Background(), "ZZZZ", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, "[TWELVEDATA] **symbol** not found: ZZZZ", err.Error())
	assert.ErrorIs(t, err, marketdata.ErrNoData)
}

func TestHistoricalClose_MissingKey(t *testing.T) {
	client := NewClient("", nil, zerolog.Nop())

	_, err := client.HistoricalClose(context.Background(), "AAPL", time.Now())
	assert.ErrorIs(t, err, marketdata.ErrMissingCredential)
}
