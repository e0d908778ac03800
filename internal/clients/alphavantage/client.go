// Package alphavantage provides a budgeted, cache-first client for the Alpha Vantage API.
//
// The free tier allows 25 requests per day, so every network call is counted
// against a daily budget and cache hits never are.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aristath/marketfacts/internal/clientdata"
	"github.com/aristath/marketfacts/internal/clients/httpjson"
	"github.com/aristath/marketfacts/internal/domain"
	"github.com/aristath/marketfacts/internal/marketcal"
	"github.com/aristath/marketfacts/internal/marketdata"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"
	providerTag    = "ALPHAVANTAGE"
	dailyLimit     = 25
	requestTimeout = 20 * time.Second
	// Free tier allows 5 calls/minute
	requestInterval = 12 * time.Second
	requestBurst    = 5
)

// ErrRateLimitExceeded is returned once the daily request budget is spent
type ErrRateLimitExceeded struct {
	Limit int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("daily request limit of %d reached", e.Limit)
}

// Client is the Alpha Vantage API client
type Client struct {
	baseURL string
	apiKey  string
	http    *httpjson.Client
	cache   *clientdata.Cache
	log     zerolog.Logger

	mu           sync.Mutex
	requestCount int
	countDay     string
	now          func() time.Time
}

// Option configures the Client
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates an Alpha Vantage client.
// cache is optional - if nil, caching is disabled.
func NewClient(apiKey string, cache *clientdata.Cache, log zerolog.Logger, opts ...Option) *Client {
	l := log.With().Str("client", "alphavantage").Logger()
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http: httpjson.New(l,
			httpjson.WithTimeout(requestTimeout),
			httpjson.WithRateLimit(requestInterval, requestBurst),
		),
		cache: cache,
		log:   l,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.countDay = marketcal.FormatDate(c.now())
	return c
}

// Name returns the provider name used in diagnostics
func (c *Client) Name() string {
	return "alphavantage"
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GetRemainingRequests returns how many calls are left in today's budget
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDay()
	return dailyLimit - c.requestCount
}

// ResetDailyCounter restores the full daily budget
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.countDay = marketcal.FormatDate(c.now())
}

// checkRateLimit consumes one request from the daily budget
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDay()
	if c.requestCount >= dailyLimit {
		return ErrRateLimitExceeded{Limit: dailyLimit}
	}
	c.requestCount++
	return nil
}

func (c *Client) rollDay() {
	if today := marketcal.FormatDate(c.now()); today != c.countDay {
		c.countDay = today
		c.requestCount = 0
	}
}

// apiNotice covers the 200-status payloads the API uses for throttling and bad input
type apiNotice struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (n apiNotice) message() string {
	switch {
	case n.ErrorMessage != "":
		return n.ErrorMessage
	case n.Note != "":
		return n.Note
	default:
		return n.Information
	}
}

// query performs one budgeted API call and returns the raw payload
func (c *Client) query(ctx context.Context, function, symbol string) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		c.log.Warn().Str("function", function).Msg("Daily request budget exhausted")
		return nil, err
	}

	params := url.Values{
		"function": {function},
		"symbol":   {symbol},
		"apikey":   {c.apiKey},
	}
	if function == "TIME_SERIES_DAILY_ADJUSTED" {
		params.Set("outputsize", "full")
	}

	body, err := c.http.GetText(ctx, c.baseURL, params)
	if err != nil {
		return nil, err
	}

	var notice apiNotice
	if err := json.Unmarshal([]byte(body), &notice); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if msg := notice.message(); msg != "" {
		return nil, httpjson.TagMessage(providerTag, msg, marketdata.ErrNoData)
	}
	return []byte(body), nil
}

type dailySeriesResponse struct {
	Series map[string]map[string]string `json:"Time Series (Daily)"`
}

// dailyCloses returns date -> close for the full history of symbol.
// The series is cached whole so that a lookback over several dates costs one request.
func (c *Client) dailyCloses(ctx context.Context, symbol string) (map[string]float64, error) {
	return clientdata.Fetch(ctx, c.cache, "av_daily_"+symbol, 0, func(ctx context.Context) (map[string]float64, error) {
		data, err := c.query(ctx, "TIME_SERIES_DAILY_ADJUSTED", symbol)
		if err != nil {
			return nil, err
		}
		return parseDailyCloses(data)
	})
}

func parseDailyCloses(data []byte) (map[string]float64, error) {
	var resp dailySeriesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode daily series: %w", err)
	}
	if len(resp.Series) == 0 {
		return nil, httpjson.TagMessage(providerTag, "empty daily series", marketdata.ErrNoData)
	}

	closes := make(map[string]float64, len(resp.Series))
	for day, row := range resp.Series {
		raw, ok := row["4. close"]
		if !ok {
			raw = row["5. adjusted close"]
		}
		if p := parseFloat64(raw); domain.IsFinitePrice(p) {
			closes[day] = p
		}
	}
	return closes, nil
}

// HistoricalClose returns the daily close for date
func (c *Client) HistoricalClose(ctx context.Context, symbol string, date time.Time) (domain.ClosePrice, error) {
	if err := c.requireKey(); err != nil {
		return domain.ClosePrice{}, err
	}

	day := marketcal.FormatDate(date)
	maxAge := clientdata.MaxAgeForSession(marketcal.IsClosed(date, c.now()))

	price, err := clientdata.Fetch(ctx, c.cache, "hist_alpha_"+symbol+"_"+day, maxAge, func(ctx context.Context) (domain.ClosePrice, error) {
		closes, err := c.dailyCloses(ctx, symbol)
		if err != nil {
			return domain.ClosePrice{}, err
		}
		p, ok := closes[day]
		if !ok {
			return domain.ClosePrice{}, httpjson.TagMessage(providerTag, "no data for date", marketdata.ErrNoData)
		}
		return domain.ClosePrice{Price: p, Source: domain.SourceAlphaVantageDaily}, nil
	})
	return price, httpjson.Tag(providerTag, err)
}

type overviewResponse struct {
	Symbol             string `json:"Symbol"`
	AnalystTargetPrice string `json:"AnalystTargetPrice"`
}

// PriceTarget returns the analyst target from the company overview.
// Alpha Vantage only publishes a single consensus value, reported as the mean.
func (c *Client) PriceTarget(ctx context.Context, symbol string) (*domain.PriceTarget, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	target, err := clientdata.Fetch(ctx, c.cache, "av_overview_"+symbol, 0, func(ctx context.Context) (*domain.PriceTarget, error) {
		data, err := c.query(ctx, "OVERVIEW", symbol)
		if err != nil {
			return nil, err
		}
		var resp overviewResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode overview: %w", err)
		}
		mean := parseFloat64Ptr(resp.AnalystTargetPrice)
		if mean == nil {
			return nil, httpjson.TagMessage(providerTag, "no AnalystTargetPrice", marketdata.ErrNoData)
		}
		return &domain.PriceTarget{
			Symbol:     symbol,
			Source:     domain.SourceAlphaVantage,
			TargetMean: mean,
		}, nil
	})
	return target, httpjson.Tag(providerTag, err)
}

type earningsResponse struct {
	QuarterlyEarnings []struct {
		FiscalDateEnding   string `json:"fiscalDateEnding"`
		ReportedEPS        string `json:"reportedEPS"`
		EstimatedEPS       string `json:"estimatedEPS"`
		Surprise           string `json:"surprise"`
		SurprisePercentage string `json:"surprisePercentage"`
	} `json:"quarterlyEarnings"`
}

// Earnings returns quarterly reported versus estimated EPS
func (c *Client) Earnings(ctx context.Context, symbol string) ([]domain.EarningsSurprise, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	surprises, err := clientdata.Fetch(ctx, c.cache, "av_earn_"+symbol, 0, func(ctx context.Context) ([]domain.EarningsSurprise, error) {
		data, err := c.query(ctx, "EARNINGS", symbol)
		if err != nil {
			return nil, err
		}
		var resp earningsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode earnings: %w", err)
		}
		if len(resp.QuarterlyEarnings) == 0 {
			return nil, httpjson.TagMessage(providerTag, "no quarterly earnings", marketdata.ErrNoData)
		}
		out := make([]domain.EarningsSurprise, len(resp.QuarterlyEarnings))
		for i, q := range resp.QuarterlyEarnings {
			out[i] = domain.EarningsSurprise{
				Period:          q.FiscalDateEnding,
				Source:          domain.SourceAlphaVantage,
				Actual:          parseFloat64Ptr(q.ReportedEPS),
				Estimate:        parseFloat64Ptr(q.EstimatedEPS),
				Surprise:        parseFloat64Ptr(q.Surprise),
				SurprisePercent: parseFloat64Ptr(q.SurprisePercentage),
			}
		}
		return out, nil
	})
	return surprises, httpjson.Tag(providerTag, err)
}

func (c *Client) requireKey() error {
	if !c.Configured() {
		return httpjson.TagMessage(providerTag, "missing API key", marketdata.ErrMissingCredential)
	}
	return nil
}

// parseFloat64 parses Alpha Vantage numeric strings; "None" and other junk become 0
func parseFloat64(s string) float64 {
	if v := parseFloat64Ptr(s); v != nil {
		return *v
	}
	return 0
}

// parseFloat64Ptr parses a nullable numeric string
func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	switch s {
	case "", "None", "null", "-":
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
