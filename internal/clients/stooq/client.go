// Package stooq reads daily closes from the stooq.com CSV download endpoint.
package stooq

import (
	"context"
	"encoding/csv"
	"io"
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
	defaultBaseURL = "https://stooq.com"
	providerTag    = "STOOQ"
)

// Client is the Stooq CSV client. It needs no credentials.
type Client struct {
	baseURL string
	http    *httpjson.Client
	cache   *clientdata.Cache
	log     zerolog.Logger
}

// Option configures the Client
type Option func(*Client)

// WithBaseURL points the client at a different host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewClient creates a Stooq client.
// cache is optional - if nil, caching is disabled.
func NewClient(cache *clientdata.Cache, log zerolog.Logger, opts ...Option) *Client {
	l := log.With().Str("client", "stooq").Logger()
	c := &Client{
		baseURL: defaultBaseURL,
		http:    httpjson.New(l),
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
	return "stooq"
}

// Configured is always true, Stooq needs no key
func (c *Client) Configured() bool {
	return true
}

// HistoricalClose returns the close for date from the US listing's daily history
func (c *Client) HistoricalClose(ctx context.Context, symbol string, date time.Time) (domain.ClosePrice, error) {
	day := marketcal.FormatDate(date)
	maxAge := clientdata.MaxAgeForSession(marketcal.IsClosed(date, time.Now()))

	price, err := clientdata.Fetch(ctx, c.cache, "hist_stooq_"+symbol+"_"+day, maxAge, func(ctx context.Context) (domain.ClosePrice, error) {
		body, err := c.http.GetText(ctx, c.baseURL+"/q/d/l/", url.Values{
			"s": {strings.ToLower(symbol) + ".us"},
			"i": {"d"},
		})
		if err != nil {
			return domain.ClosePrice{}, err
		}

		p, err := findClose(body, day)
		if err != nil {
			return domain.ClosePrice{}, err
		}
		return domain.ClosePrice{Price: p, Source: domain.SourceStooqCSV}, nil
	})
	return price, httpjson.Tag(providerTag, err)
}

// findClose scans a Date,Open,High,Low,Close,Volume CSV for day.
// Columns are located by header name, not position.
func findClose(body, day string) (float64, error) {
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return 0, httpjson.TagMessage(providerTag, "no data", marketdata.ErrNoData)
	}
	idxDate, idxClose := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "Date":
			idxDate = i
		case "Close":
			idxClose = i
		}
	}
	// "No data" is returned as a single-line body for unknown symbols
	if idxDate < 0 || idxClose < 0 {
		return 0, httpjson.TagMessage(providerTag, "no data", marketdata.ErrNoData)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, httpjson.TagMessage(providerTag, "malformed CSV: "+err.Error(), marketdata.ErrNoData)
		}
		if len(row) <= idxDate || len(row) <= idxClose || row[idxDate] != day {
			continue
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(row[idxClose]), 64)
		if err == nil && domain.IsFinitePrice(p) {
			return p, nil
		}
	}
	return 0, httpjson.TagMessage(providerTag, "no data for date", marketdata.ErrNoData)
}
