package di

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketfacts/internal/config"
	"github.com/aristath/marketfacts/internal/llm"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:         t.TempDir(),
		MaxLookbackDays: 7,
		Credentials: config.Credentials{
			FinnhubAPIKey: "fh-test",
		},
		Cache: config.CacheConfig{
			Backend:         backend,
			TTL:             24 * time.Hour,
			Retention:       30 * 24 * time.Hour,
			CleanupSchedule: "0 30 3 * * *",
		},
		LLM: config.LLMConfig{
			Provider:      config.LLMProviderOpenAI,
			MaxRPS:        3,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			Timeout:       time.Minute,
		},
	}
}

func TestWire(t *testing.T) {
	for _, backend := range []string{config.CacheBackendSQLite, config.CacheBackendFile, config.CacheBackendMemory} {
		t.Run(backend, func(t *testing.T) {
			container, err := Wire(testConfig(t, backend), zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = container.Close() })

			assert.NotNil(t, container.Cache)
			assert.NotNil(t, container.Resolver)
			assert.NotNil(t, container.LLMClient)
			assert.NotNil(t, container.Scheduler)
			require.NotNil(t, container.CleanupJob)
			assert.Equal(t, backend == config.CacheBackendSQLite, container.CacheDB != nil)

			jobs := container.Scheduler.Jobs()
			require.Len(t, jobs, 1)
			assert.Equal(t, "fact_cache_cleanup", jobs[0].Name)
		})
	}
}

func TestWire_CacheRoundTrip(t *testing.T) {
	container, err := Wire(testConfig(t, config.CacheBackendSQLite), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	ctx := context.Background()
	container.Cache.SetBestEffort(ctx, "resolved_close_AAPL_2024-01-05", map[string]float64{"price": 181.18})

	var out map[string]float64
	require.True(t, container.Cache.Get(ctx, "resolved_close_AAPL_2024-01-05", &out))
	assert.Equal(t, 181.18, out["price"])

	require.NoError(t, container.Scheduler.RunNow(container.CleanupJob))
	assert.True(t, container.Cache.Get(ctx, "resolved_close_AAPL_2024-01-05", &out))
}

func TestWire_UnknownBackend(t *testing.T) {
	_, err := Wire(testConfig(t, "redis"), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache backend")
}

func TestWire_ProviderConfiguration(t *testing.T) {
	container, err := Wire(testConfig(t, config.CacheBackendMemory), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.True(t, container.FinnhubClient.Configured())
	assert.False(t, container.AlphaVantageClient.Configured())
	assert.False(t, container.TwelveDataClient.Configured())
	assert.True(t, container.YahooClient.Configured())
	assert.True(t, container.StooqClient.Configured())
	assert.Equal(t, 7, container.Resolver.MaxLookbackDays())
}

func TestWire_MissingLLMKeyFailsFast(t *testing.T) {
	container, err := Wire(testConfig(t, config.CacheBackendMemory), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Equal(t, "openai", container.LLMClient.Backend())
	_, err = container.LLMClient.ChatCompletion(context.Background(), "gpt-4o-mini",
		[]llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.Options{})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
	assert.Zero(t, container.LLMQueue.Dispatched())
}

func TestWire_AnthropicProvider(t *testing.T) {
	cfg := testConfig(t, config.CacheBackendMemory)
	cfg.LLM.Provider = config.LLMProviderAnthropic
	cfg.LLM.AnthropicAPIKey = "sk-ant-test"

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Equal(t, "anthropic", container.LLMClient.Backend())
	assert.True(t, container.LLMClient.Configured())
}

func TestResolverConfig_PriorityOrder(t *testing.T) {
	container, err := Wire(testConfig(t, config.CacheBackendMemory), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	rc := resolverConfig(container, 7)
	names := func(n int, name func(i int) string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = name(i)
		}
		return out
	}

	assert.Equal(t, []string{"finnhub", "alphavantage", "yahoo", "stooq", "twelvedata"},
		names(len(rc.Historical), func(i int) string { return rc.Historical[i].Name() }))
	assert.Equal(t, []string{"finnhub", "yahoo", "alphavantage"},
		names(len(rc.Targets), func(i int) string { return rc.Targets[i].Name() }))
	assert.Equal(t, []string{"finnhub", "yahoo"},
		names(len(rc.Quotes), func(i int) string { return rc.Quotes[i].Name() }))
	assert.Equal(t, []string{"finnhub", "alphavantage"},
		names(len(rc.Earnings), func(i int) string { return rc.Earnings[i].Name() }))
}
