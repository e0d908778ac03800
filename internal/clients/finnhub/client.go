// Package finnhub provides a cache-first client for the Finnhub stock API.
package finnhub

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/clients/httpjson"
	"github.com/aristath/marketfacts/internal/domain"
	"github.com/aristath/marketfacts/internal/marketcal"
	"github.com/aristath/marketfacts/internal/marketdata"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://finnhub.io/api/v1"
	providerTag    = "FINNHUB"
	// Free tier allows 60 calls/minute
	requestInterval = time.Second
	requestBurst    = 10
)

// Client is the Finnhub API client
type Client struct {
	baseURL string
	apiKey  string
	http    *httpjson.Client
	cache   *clientdata.Cache
	log     zerolog.Logger
}

// Option configures the Client
type Option func(*Client)

// WithBaseURL points the client at a different API root
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewClient creates a Finnhub client.
// cache is optional - if nil, caching is disabled.
func NewClient(apiKey string, cache *clientdata.Cache, log zerolog.Logger, opts ...Option) *Client {
	l := log.With().Str("client", "finnhub").Logger()
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    httpjson.New(l, httpjson.WithRateLimit(requestInterval, requestBurst)),
		cache:   cache,
		log:     l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name used in diagnostics
func (c *Client) Name() string {
	return "finnhub"
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Quote returns the current quote for symbol
func (c *Client) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	quote, err := clientdata.Fetch(ctx, c.cache, "fh_quote_"+symbol, 0, func(ctx context.Context) (*domain.Quote, error) {
		var resp quoteResponse
		if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &resp); err != nil {
			return nil, err
		}
		// Unknown symbols come back as an all-zero payload
		if !domain.IsFinitePrice(resp.Current) {
			return nil, httpjson.TagMessage(providerTag, "empty quote payload", marketdata.ErrNoData)
		}
		return &domain.Quote{
			Symbol:        symbol,
			Source:        domain.SourceFinnhub,
			Current:       resp.Current,
			Change:        resp.Change,
			PercentChange: resp.PercentChange,
			High:          resp.High,
			Low:           resp.Low,
			Open:          resp.Open,
			PreviousClose: resp.PreviousClose,
			Timestamp:     time.Unix(resp.Timestamp, 0).UTC(),
		}, nil
	})
	return quote, httpjson.Tag(providerTag, err)
}

type recommendationResponse struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
}

// Recommendations returns analyst recommendation trends, newest period first
func (c *Client) Recommendations(ctx context.Context, symbol string) ([]domain.RecommendationTrend, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	trends, err := clientdata.Fetch(ctx, c.cache, "fh_reco_"+symbol, 0, func(ctx context.Context) ([]domain.RecommendationTrend, error) {
		var resp []recommendationResponse
		if err := c.get(ctx, "/stock/recommendation", url.Values{"symbol": {symbol}}, &resp); err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			return nil, httpjson.TagMessage(providerTag, "no recommendation trends", marketdata.ErrNoData)
		}
		trends := make([]domain.RecommendationTrend, len(resp))
		for i, r := range resp {
			trends[i] = domain.RecommendationTrend{
				Period:     r.Period,
				Source:     domain.SourceFinnhub,
				StrongBuy:  r.StrongBuy,
				Buy:        r.Buy,
				Hold:       r.Hold,
				Sell:       r.Sell,
				StrongSell: r.StrongSell,
			}
		}
		return trends, nil
	})
	return trends, httpjson.Tag(providerTag, err)
}

type earningsResponse struct {
	Period          string   `json:"period"`
	Actual          *float64 `json:"actual"`
	Estimate        *float64 `json:"estimate"`
	Surprise        *float64 `json:"surprise"`
	SurprisePercent *float64 `json:"surprisePercent"`
}

// Earnings returns the reported quarterly earnings surprises
func (c *Client) Earnings(ctx context.Context, symbol string) ([]domain.EarningsSurprise, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	surprises, err := clientdata.Fetch(ctx, c.cache, "fh_earn_"+symbol, 0, func(ctx context.Context) ([]domain.EarningsSurprise, error) {
		var resp []earningsResponse
		if err := c.get(ctx, "/stock/earnings", url.Values{"symbol": {symbol}}, &resp); err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			return nil, httpjson.TagMessage(providerTag, "no earnings reported", marketdata.ErrNoData)
		}
		out := make([]domain.EarningsSurprise, len(resp))
		for i, e := range resp {
			out[i] = domain.EarningsSurprise{
				Period:          e.Period,
				Source:          domain.SourceFinnhub,
				Actual:          e.Actual,
				Estimate:        e.Estimate,
				Surprise:        e.Surprise,
				SurprisePercent: e.SurprisePercent,
			}
		}
		return out, nil
	})
	return surprises, httpjson.Tag(providerTag, err)
}

type priceTargetResponse struct {
	Symbol       string   `json:"symbol"`
	LastUpdated  string   `json:"lastUpdated"`
	TargetHigh   *float64 `json:"targetHigh"`
	TargetLow    *float64 `json:"targetLow"`
	TargetMean   *float64 `json:"targetMean"`
	TargetMedian *float64 `json:"targetMedian"`
}

// PriceTarget returns the analyst price target consensus
func (c *Client) PriceTarget(ctx context.Context, symbol string) (*domain.PriceTarget, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	target, err := clientdata.Fetch(ctx, c.cache, "finnhub_pt_"+symbol, 0, func(ctx context.Context) (*domain.PriceTarget, error) {
		var resp priceTargetResponse
		if err := c.get(ctx, "/stock/price-target", url.Values{"symbol": {symbol}}, &resp); err != nil {
			return nil, err
		}
		target := &domain.PriceTarget{
			Symbol:       symbol,
			Source:       domain.SourceFinnhub,
			LastUpdated:  resp.LastUpdated,
			TargetHigh:   nonZero(resp.TargetHigh),
			TargetLow:    nonZero(resp.TargetLow),
			TargetMean:   nonZero(resp.TargetMean),
			TargetMedian: nonZero(resp.TargetMedian),
		}
		if target.TargetMean == nil && target.TargetHigh == nil && target.TargetLow == nil {
			return nil, httpjson.TagMessage(providerTag, "empty price-target payload", marketdata.ErrNoData)
		}
		return target, nil
	})
	return target, httpjson.Tag(providerTag, err)
}

type candleResponse struct {
	Status string    `json:"s"`
	Close  []float64 `json:"c"`
}

// HistoricalClose returns the daily candle close for date
func (c *Client) HistoricalClose(ctx context.Context, symbol string, date time.Time) (domain.ClosePrice, error) {
	if err := c.requireKey(); err != nil {
		return domain.ClosePrice{}, err
	}

	day := marketcal.FormatDate(date)
	maxAge := clientdata.MaxAgeForSession(marketcal.IsClosed(date, time.Now()))

	price, err := clientdata.Fetch(ctx, c.cache, "hist_finnhub_"+symbol+"_"+day, maxAge, func(ctx context.Context) (domain.ClosePrice, error) {
		from := marketcal.NormalizeDate(date)
		to := from.Add(24*time.Hour - time.Second)

		var resp candleResponse
		query := url.Values{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {fmt.Sprint(from.Unix())},
			"to":         {fmt.Sprint(to.Unix())},
		}
		if err := c.get(ctx, "/stock/candle", query, &resp); err != nil {
			return domain.ClosePrice{}, err
		}
		if resp.Status == "ok" && len(resp.Close) > 0 {
			p := domain.ClosePrice{Price: resp.Close[len(resp.Close)-1], Source: domain.SourceFinnhubCandle}
			if p.Valid() {
				return p, nil
			}
		}
		msg := resp.Status
		if msg == "" || msg == "ok" {
			msg = "candle no data"
		}
		return domain.ClosePrice{}, httpjson.TagMessage(providerTag, msg, marketdata.ErrNoData)
	})
	return price, httpjson.Tag(providerTag, err)
}

func (c *Client) requireKey() error {
	if !c.Configured() {
		return httpjson.TagMessage(providerTag, "missing API key", marketdata.ErrMissingCredential)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	query.Set("token", c.apiKey)
	if err := c.http.GetJSON(ctx, c.baseURL+path, query, out); err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("Request failed")
		return err
	}
	return nil
}

// nonZero treats 0 as "not reported", which is how the API encodes missing targets
func nonZero(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}
