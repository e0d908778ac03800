// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/clients/alphavantage"
	"github.com/aristath/marketfacts/internal/clients/finnhub"
	"github.com/aristath/marketfacts/internal/clients/stooq"
	"github.com/aristath/marketfacts/internal/clients/twelvedata"
	"github.com/aristath/marketfacts/internal/clients/yahoo"
	"github.com/aristath/marketfacts/internal/database"
	"github.com/aristath/marketfacts/internal/llm"
	"github.com/aristath/marketfacts/internal/marketdata"
	"github.com/aristath/marketfacts/internal/ratelimit"
	"github.com/aristath/marketfacts/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire() and is the single source of truth for service instances.
type Container struct {
	// Storage. CacheDB is nil unless the sqlite backend is selected.
	CacheDB    *database.DB
	CacheStore clientdata.Store
	Cache      *clientdata.Cache

	// Market data providers
	FinnhubClient      *finnhub.Client
	AlphaVantageClient *alphavantage.Client
	YahooClient        *yahoo.Client
	StooqClient        *stooq.Client
	TwelveDataClient   *twelvedata.Client

	Resolver *marketdata.Resolver

	// LLM access, paced and retried through one queue
	LLMQueue   *ratelimit.Scheduler
	LLMLimiter *ratelimit.Client
	LLMClient  *llm.Client

	// Background jobs
	Scheduler  *scheduler.Scheduler
	CleanupJob *clientdata.CleanupJob
}

// Close releases the LLM queue and the cache database.
// The cron scheduler is stopped by the caller, which also started it.
func (c *Container) Close() error {
	if c.LLMQueue != nil {
		c.LLMQueue.Close()
	}
	if c.CacheDB != nil {
		return c.CacheDB.Close()
	}
	return nil
}
