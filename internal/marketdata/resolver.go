// Package marketdata resolves market facts by falling back across provider adapters.
//
// Providers are tried in fixed priority order and the first success wins.
// Historical closes additionally walk backward over a bounded calendar window
// until some provider has a price, so the returned date may precede the
// requested one. The scan is sequential: the earliest-tried (date, provider)
// pair that succeeds is always the answer.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/domain"
	"github.com/aristath/marketfacts/internal/marketcal"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxLookbackDays bounds the backward date walk
	DefaultMaxLookbackDays = 7

	calendarProvider = "calendar"
	maxSymbolLength  = 15
)

// Config holds the ordered source lists. Order is priority.
type Config struct {
	MaxLookbackDays int
	Historical      []HistoricalSource
	Quotes          []QuoteSource
	Recommendations []RecommendationSource
	Earnings        []EarningsSource
	Targets         []TargetSource
}

// Resolution is a resolved historical close together with the attempts that preceded it
type Resolution struct {
	Fact     domain.PriceFact `json:"fact"`
	Attempts []AttemptError   `json:"attempts,omitempty"`
	Cached   bool             `json:"cached"`
}

// Resolver resolves facts across providers
type Resolver struct {
	cfg   Config
	cache *clientdata.Cache
	log   zerolog.Logger
	now   func() time.Time
}

// NewResolver creates a resolver.
// cache is optional - if nil, resolved closes are not cached.
func NewResolver(cfg Config, cache *clientdata.Cache, log zerolog.Logger) *Resolver {
	if cfg.MaxLookbackDays < 0 {
		cfg.MaxLookbackDays = DefaultMaxLookbackDays
	}
	return &Resolver{
		cfg:   cfg,
		cache: cache,
		log:   log.With().Str("component", "resolver").Logger(),
		now:   time.Now,
	}
}

// MaxLookbackDays returns the configured lookback window
func (r *Resolver) MaxLookbackDays() int {
	return r.cfg.MaxLookbackDays
}

// HistoricalClose returns the close for symbol on date, or on the nearest
// earlier trading day within the lookback window.
func (r *Resolver) HistoricalClose(ctx context.Context, symbol string, date time.Time) (domain.PriceFact, error) {
	res, err := r.ResolveHistoricalClose(ctx, symbol, date)
	if err != nil {
		return domain.PriceFact{}, err
	}
	return res.Fact, nil
}

// ResolveHistoricalClose is HistoricalClose that also reports every failed
// attempt and skipped non-trading day before the winning one.
func (r *Resolver) ResolveHistoricalClose(ctx context.Context, symbol string, date time.Time) (Resolution, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return Resolution{}, err
	}

	sources := configured(r.cfg.Historical)
	if len(sources) == 0 {
		return Resolution{}, fmt.Errorf("historical close for %s: %w", symbol, ErrNoSources)
	}

	requested := marketcal.NormalizeDate(date)
	resolvedKey := "resolved_close_" + symbol + "_" + marketcal.FormatDate(requested)
	maxAge := clientdata.MaxAgeForSession(marketcal.IsClosed(requested, r.now()))

	var cached domain.PriceFact
	if r.cache.GetWithMaxAge(ctx, resolvedKey, maxAge, &cached) {
		return Resolution{Fact: cached, Cached: true}, nil
	}

	var attempts []AttemptError
	for offset := 0; offset <= r.cfg.MaxLookbackDays; offset++ {
		if err := ctx.Err(); err != nil {
			return Resolution{Attempts: attempts}, fmt.Errorf("historical close for %s: %w", symbol, err)
		}

		candidate := requested.AddDate(0, 0, -offset)
		day := marketcal.FormatDate(candidate)

		if marketcal.IsNonTradingDay(candidate) {
			attempts = append(attempts, AttemptError{Date: day, Provider: calendarProvider, Message: "non-trading day"})
			continue
		}

		for _, src := range sources {
			price, err := src.HistoricalClose(ctx, symbol, candidate)
			if err == nil && !price.Valid() {
				err = fmt.Errorf("invalid price %v: %w", price.Price, ErrNoData)
			}
			if err != nil {
				r.log.Debug().
					Err(err).
					Str("symbol", symbol).
					Str("date", day).
					Str("provider", src.Name()).
					Msg("Historical close attempt failed")
				attempts = append(attempts, AttemptError{Date: day, Provider: src.Name(), Message: err.Error()})
				continue
			}

			fact := domain.PriceFact{Price: price.Price, Source: price.Source, Date: day}
			if fact.Source == "" {
				fact.Source = domain.Source(src.Name())
			}
			// A fallback caused by provider failures must not outlive the outage
			if onlyCalendarSkips(attempts) {
				r.cache.SetBestEffort(ctx, resolvedKey, fact)
			}

			r.log.Debug().
				Str("symbol", symbol).
				Str("requested", marketcal.FormatDate(requested)).
				Str("date", day).
				Str("source", string(fact.Source)).
				Int("failed_attempts", len(attempts)).
				Msg("Historical close resolved")
			return Resolution{Fact: fact, Attempts: attempts}, nil
		}
	}

	r.log.Warn().
		Str("symbol", symbol).
		Str("requested", marketcal.FormatDate(requested)).
		Int("attempts", len(attempts)).
		Msg("Historical close lookback exhausted")
	return Resolution{Attempts: attempts}, &ExhaustedError{Fact: "historical close", Symbol: symbol, Attempts: attempts}
}

// Quote returns the first available quote
func (r *Resolver) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return resolveSnapshot(ctx, r, "quote", symbol, r.cfg.Quotes, func(ctx context.Context, src QuoteSource, sym string) (*domain.Quote, error) {
		q, err := src.Quote(ctx, sym)
		if err == nil && q == nil {
			err = ErrNoData
		}
		return q, err
	})
}

// Recommendations returns the first available recommendation trends
func (r *Resolver) Recommendations(ctx context.Context, symbol string) ([]domain.RecommendationTrend, error) {
	return resolveSnapshot(ctx, r, "recommendations", symbol, r.cfg.Recommendations, func(ctx context.Context, src RecommendationSource, sym string) ([]domain.RecommendationTrend, error) {
		trends, err := src.Recommendations(ctx, sym)
		if err == nil && len(trends) == 0 {
			err = ErrNoData
		}
		return trends, err
	})
}

// Earnings returns the first available earnings history
func (r *Resolver) Earnings(ctx context.Context, symbol string) ([]domain.EarningsSurprise, error) {
	return resolveSnapshot(ctx, r, "earnings", symbol, r.cfg.Earnings, func(ctx context.Context, src EarningsSource, sym string) ([]domain.EarningsSurprise, error) {
		earnings, err := src.Earnings(ctx, sym)
		if err == nil && len(earnings) == 0 {
			err = ErrNoData
		}
		return earnings, err
	})
}

// PriceTarget returns the first available analyst price target
func (r *Resolver) PriceTarget(ctx context.Context, symbol string) (*domain.PriceTarget, error) {
	return resolveSnapshot(ctx, r, "price target", symbol, r.cfg.Targets, func(ctx context.Context, src TargetSource, sym string) (*domain.PriceTarget, error) {
		t, err := src.PriceTarget(ctx, sym)
		if err == nil && (t == nil || !t.HasTargets()) {
			err = ErrNoData
		}
		return t, err
	})
}

// resolveSnapshot tries configured sources in order and returns the first success.
func resolveSnapshot[S Source, T any](ctx context.Context, r *Resolver, fact, symbol string, sources []S, fetch func(context.Context, S, string) (T, error)) (T, error) {
	var zero T

	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return zero, err
	}

	active := configured(sources)
	if len(active) == 0 {
		return zero, fmt.Errorf("%s for %s: %w", fact, symbol, ErrNoSources)
	}

	var attempts []AttemptError
	for _, src := range active {
		v, err := fetch(ctx, src, symbol)
		if err != nil {
			r.log.Debug().
				Err(err).
				Str("fact", fact).
				Str("symbol", symbol).
				Str("provider", src.Name()).
				Msg("Snapshot attempt failed")
			attempts = append(attempts, AttemptError{Provider: src.Name(), Message: err.Error()})
			continue
		}
		return v, nil
	}

	r.log.Warn().Str("fact", fact).Str("symbol", symbol).Int("attempts", len(attempts)).Msg("All sources failed")
	return zero, &ExhaustedError{Fact: fact, Symbol: symbol, Attempts: attempts}
}

// onlyCalendarSkips reports whether every recorded attempt was a non-trading day
func onlyCalendarSkips(attempts []AttemptError) bool {
	for _, a := range attempts {
		if a.Provider != calendarProvider {
			return false
		}
	}
	return true
}

// configured filters out sources missing their credentials.
// They are skipped silently and never appear in diagnostics.
func configured[S Source](sources []S) []S {
	out := make([]S, 0, len(sources))
	for _, s := range sources {
		if s.Configured() {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeSymbol upper-cases and validates a ticker symbol
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(symbol) > maxSymbolLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '^', r == '=':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
		}
	}
	return symbol, nil
}
