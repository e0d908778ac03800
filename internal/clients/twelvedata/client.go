// Package twelvedata provides a cache-first client for the Twelve Data time series API.
package twelvedata

import (
	"context"
	"net/url"
	"strconv"
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
	defaultBaseURL = "https://api.twelvedata.com"
	providerTag    = "TWELVEDATA"
	outputSize     = "5000"
	// Free tier allows 8 calls/minute
	requestInterval = 7500 * time.Millisecond
	requestBurst    = 8
)

// Client is the Twelve Data API client
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

// NewClient creates a Twelve Data client.
// cache is optional - if nil, caching is disabled.
func NewClient(apiKey string, cache *clientdata.Cache, log zerolog.Logger, opts ...Option) *Client {
	l := log.With().Str("client", "twelvedata").Logger()
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
	return "twelvedata"
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type timeSeriesResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
		Price    string `json:"price"`
	} `json:"values"`
}

// dailyCloses returns date -> close for the last 5000 daily bars, cached as a whole
func (c *Client) dailyCloses(ctx context.Context, symbol string) (map[string]float64, error) {
	return clientdata.Fetch(ctx, c.cache, "td_series_"+symbol, 0, func(ctx context.Context) (map[string]float64, error) {
		var resp timeSeriesResponse
		err := c.http.GetJSON(ctx, c.baseURL+"/time_series", url.Values{
			"symbol":     {symbol},
			"interval":   {"1day"},
			"outputsize": {outputSize},
			"timezone":   {"UTC"},
			"apikey":     {c.apiKey},
		}, &resp)
		if err != nil {
			return nil, err
		}
		// Errors arrive with HTTP 200 and status "error"
		if resp.Status != "ok" {
			msg := resp.Message
			if msg == "" {
				msg = "no data"
			}
			return nil, httpjson.TagMessage(providerTag, msg, marketdata.ErrNoData)
		}

		closes := make(map[string]float64, len(resp.Values))
		for _, v := range resp.Values {
			raw := v.Close
			if raw == "" {
				raw = v.Price
			}
			p, err := strconv.ParseFloat(raw, 64)
			if err != nil || !domain.IsFinitePrice(p) {
				continue
			}
			// Daily bars carry a bare date, intraday ones a timestamp
			closes[strings.SplitN(v.Datetime, " ", 2)[0]] = p
		}
		return closes, nil
	})
}

// HistoricalClose returns the daily close for date
func (c *Client) HistoricalClose(ctx context.Context, symbol string, date time.Time) (domain.ClosePrice, error) {
	if !c.Configured() {
		return domain.ClosePrice{}, httpjson.TagMessage(providerTag, "missing API key", marketdata.ErrMissingCredential)
	}

	day := marketcal.FormatDate(date)
	maxAge := clientdata.MaxAgeForSession(marketcal.IsClosed(date, time.Now()))

	price, err := clientdata.Fetch(ctx, c.cache, "hist_twelve_"+symbol+"_"+day, maxAge, func(ctx context.Context) (domain.ClosePrice, error) {
		closes, err := c.dailyCloses(ctx, symbol)
		if err != nil {
			return domain.ClosePrice{}, err
		}
		p, ok := closes[day]
		if !ok {
			return domain.ClosePrice{}, httpjson.TagMessage(providerTag, "no data for date", marketdata.ErrNoData)
		}
		return domain.ClosePrice{Price: p, Source: domain.SourceTwelveData}, nil
	})
	return price, httpjson.Tag(providerTag, err)
}
