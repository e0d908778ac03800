package httpjson

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, BrowserUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"c": 185.5}`))
	}))
	defer server.Close()

	c := New(zerolog.Nop(), WithUserAgent(BrowserUserAgent))

	var out struct {
		C float64 `json:"c"`
	}
	err := c.GetJSON(context.Background(), server.URL+"/quote", url.Values{"symbol": {"AAPL"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 185.5, out.C)
}

func TestGetJSON_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"API limit reached"}`))
	}))
	defer server.Close()

	c := New(zerolog.Nop())

	var out map[string]interface{}
	err := c.GetJSON(context.Background(), server.URL, nil, &out)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	assert.Contains(t, statusErr.Body, "API limit reached")
	assert.NotContains(t, err.Error(), "token=")
}

func TestGetJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := New(zerolog.Nop()).GetJSON(context.Background(), server.URL, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestGetText_AppendsToExistingQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "d", r.URL.Query().Get("i"))
		assert.Equal(t, "aapl.us", r.URL.Query().Get("s"))
		_, _ = w.Write([]byte("Date,Close\n2024-01-05,181.18\n"))
	}))
	defer server.Close()

	body, err := New(zerolog.Nop()).GetText(context.Background(), server.URL+"/q/d/l/?i=d", url.Values{"s": {"aapl.us"}})
	require.NoError(t, err)
	assert.Contains(t, body, "181.18")
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := New(zerolog.Nop(), WithTimeout(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, c.Timeout())

	_, err := c.GetText(context.Background(), server.URL, nil)
	require.Error(t, err)
}

func TestRateLimit_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := New(zerolog.Nop(), WithRateLimit(time.Hour, 1))

	_, err := c.GetText(context.Background(), server.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.GetText(ctx, server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
