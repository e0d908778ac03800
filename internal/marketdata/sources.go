package marketdata

import (
	"context"
	"time"

	"github.com/aristath/marketfacts/internal/domain"
)

// Source is a provider adapter
type Source interface {
	Name() string
	// Configured reports whether the adapter has the credentials it needs
	Configured() bool
}

// HistoricalSource returns a provider's close for one calendar date
type HistoricalSource interface {
	Source
	HistoricalClose(ctx context.Context, symbol string, date time.Time) (domain.ClosePrice, error)
}

// QuoteSource returns a current quote
type QuoteSource interface {
	Source
	Quote(ctx context.Context, symbol string) (*domain.Quote, error)
}

// RecommendationSource returns analyst recommendation trends
type RecommendationSource interface {
	Source
	Recommendations(ctx context.Context, symbol string) ([]domain.RecommendationTrend, error)
}

// EarningsSource returns reported earnings surprises
type EarningsSource interface {
	Source
	Earnings(ctx context.Context, symbol string) ([]domain.EarningsSurprise, error)
}

// TargetSource returns the analyst price target consensus
type TargetSource interface {
	Source
	PriceTarget(ctx context.Context, symbol string) (*domain.PriceTarget, error)
}
