package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketfacts/internal/clients/alphavantage"
	"github.com/aristath/marketfacts/internal/clients/finnhub"
	"github.com/aristath/marketfacts/internal/clients/stooq"
	"github.com/aristath/marketfacts/internal/clients/twelvedata"
	"github.com/aristath/marketfacts/internal/clients/yahoo"
	"github.com/aristath/marketfacts/internal/config"
	"github.com/aristath/marketfacts/internal/llm"
	"github.com/aristath/marketfacts/internal/marketdata"
	"github.com/aristath/marketfacts/internal/ratelimit"
)

// InitializeServices creates the provider clients, the resolver and the LLM client
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.Cache == nil {
		return fmt.Errorf("cache must be initialized before services")
	}

	creds := cfg.Credentials
	container.FinnhubClient = finnhub.NewClient(creds.FinnhubAPIKey, container.Cache, log)
	container.AlphaVantageClient = alphavantage.NewClient(creds.AlphaVantageAPIKey, container.Cache, log)
	container.YahooClient = yahoo.NewClient(container.Cache, log)
	container.StooqClient = stooq.NewClient(container.Cache, log)
	container.TwelveDataClient = twelvedata.NewClient(creds.TwelveDataAPIKey, container.Cache, log)

	container.Resolver = marketdata.NewResolver(resolverConfig(container, cfg.MaxLookbackDays), container.Cache, log)

	container.LLMQueue = ratelimit.NewScheduler(cfg.LLM.MaxRPS, log)
	container.LLMLimiter = ratelimit.NewClient(container.LLMQueue, ratelimit.RetryPolicy{
		MaxAttempts: cfg.LLM.RetryAttempts,
		BaseDelay:   cfg.LLM.RetryDelay,
		MaxJitter:   ratelimit.DefaultRetryPolicy().MaxJitter,
	}, log, ratelimit.WithClassifier(llm.IsRetryable))
	container.LLMClient = llm.NewClient(newLLMBackend(cfg.LLM, log), container.LLMLimiter, log,
		llm.WithDefaultTimeout(cfg.LLM.Timeout))

	log.Info().
		Bool("finnhub", container.FinnhubClient.Configured()).
		Bool("alphavantage", container.AlphaVantageClient.Configured()).
		Bool("twelvedata", container.TwelveDataClient.Configured()).
		Str("llm_provider", cfg.LLM.Provider).
		Bool("llm_configured", container.LLMClient.Configured()).
		Msg("Services initialized")

	return nil
}

// resolverConfig fixes the provider priority for every fact
func resolverConfig(c *Container, maxLookbackDays int) marketdata.Config {
	return marketdata.Config{
		MaxLookbackDays: maxLookbackDays,
		Historical: []marketdata.HistoricalSource{
			c.FinnhubClient,
			c.AlphaVantageClient,
			c.YahooClient,
			c.StooqClient,
			c.TwelveDataClient,
		},
		Quotes: []marketdata.QuoteSource{
			c.FinnhubClient,
			c.YahooClient,
		},
		Recommendations: []marketdata.RecommendationSource{
			c.FinnhubClient,
		},
		Earnings: []marketdata.EarningsSource{
			c.FinnhubClient,
			c.AlphaVantageClient,
		},
		Targets: []marketdata.TargetSource{
			c.FinnhubClient,
			c.YahooClient,
			c.AlphaVantageClient,
		},
	}
}

func newLLMBackend(cfg config.LLMConfig, log zerolog.Logger) llm.Backend {
	if cfg.Provider == config.LLMProviderAnthropic {
		return llm.NewAnthropicBackend(cfg.AnthropicAPIKey, log)
	}
	return llm.NewOpenAIBackend(cfg.OpenAIAPIKey, log)
}
