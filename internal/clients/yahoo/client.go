// Package yahoo provides a keyless, cache-first client for Yahoo Finance chart and summary endpoints.
package yahoo

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
	defaultChartURL   = "https://query1.finance.yahoo.com"
	defaultSummaryURL = "https://query2.finance.yahoo.com"
	providerTag       = "YAHOO"
	requestInterval   = 500 * time.Millisecond
	requestBurst      = 4
)

// Client is the Yahoo Finance client. It needs no credentials.
type Client struct {
	chartURL   string
	summaryURL string
	http       *httpjson.Client
	cache      *clientdata.Cache
	log        zerolog.Logger
}

// Option configures the Client
type Option func(*Client)

// WithBaseURL points both chart and summary requests at one host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		baseURL = strings.TrimRight(baseURL, "/")
		c.chartURL = baseURL
		c.summaryURL = baseURL
	}
}

// NewClient creates a Yahoo Finance client.
// cache is optional - if nil, caching is disabled.
func NewClient(cache *clientdata.Cache, log zerolog.Logger, opts ...Option) *Client {
	l := log.With().Str("client", "yahoo").Logger()
	c := &Client{
		chartURL:   defaultChartURL,
		summaryURL: defaultSummaryURL,
		http: httpjson.New(l,
			httpjson.WithUserAgent(httpjson.BrowserUserAgent),
			httpjson.WithRateLimit(requestInterval, requestBurst),
		),
		cache: cache,
		log:   l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name used in diagnostics
func (c *Client) Name() string {
	return "yahoo"
}

// Configured is always true, Yahoo needs no key
func (c *Client) Configured() bool {
	return true
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				GMTOffset          int64   `json:"gmtoffset"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				DayHigh            float64 `json:"regularMarketDayHigh"`
				DayLow             float64 `json:"regularMarketDayLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) chart(ctx context.Context, symbol string, query url.Values) (*chartResponse, error) {
	var resp chartResponse
	if err := c.http.GetJSON(ctx, c.chartURL+"/v8/finance/chart/"+url.PathEscape(symbol), query, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, httpjson.TagMessage(providerTag, resp.Chart.Error.Description, marketdata.ErrNoData)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, httpjson.TagMessage(providerTag, "chart no data", marketdata.ErrNoData)
	}
	return &resp, nil
}

// HistoricalClose returns the daily bar close for date.
// Only a bar whose exchange-local date equals date is accepted.
func (c *Client) HistoricalClose(ctx context.Context, symbol string, date time.Time) (domain.ClosePrice, error) {
	day := marketcal.FormatDate(date)
	maxAge := clientdata.MaxAgeForSession(marketcal.IsClosed(date, time.Now()))

	price, err := clientdata.Fetch(ctx, c.cache, "hist_yahoo_"+symbol+"_"+day, maxAge, func(ctx context.Context) (domain.ClosePrice, error) {
		from := marketcal.NormalizeDate(date)
		to := from.Add(48*time.Hour - time.Second)

		resp, err := c.chart(ctx, symbol, url.Values{
			"interval":       {"1d"},
			"period1":        {fmt.Sprint(from.Unix())},
			"period2":        {fmt.Sprint(to.Unix())},
			"includePrePost": {"false"},
			"events":         {"div,split"},
		})
		if err != nil {
			return domain.ClosePrice{}, err
		}

		result := resp.Chart.Result[0]
		if len(result.Indicators.Quote) == 0 {
			return domain.ClosePrice{}, httpjson.TagMessage(providerTag, "chart no data", marketdata.ErrNoData)
		}
		closes := result.Indicators.Quote[0].Close
		for i, ts := range result.Timestamp {
			barDay := marketcal.FormatDate(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
			if barDay != day || i >= len(closes) || closes[i] == nil {
				continue
			}
			p := domain.ClosePrice{Price: *closes[i], Source: domain.SourceYahooChart}
			if p.Valid() {
				return p, nil
			}
		}
		return domain.ClosePrice{}, httpjson.TagMessage(providerTag, "chart no data", marketdata.ErrNoData)
	})
	return price, httpjson.Tag(providerTag, err)
}

// Quote returns the latest regular-market quote from the chart metadata
func (c *Client) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	quote, err := clientdata.Fetch(ctx, c.cache, "yahoo_quote_"+symbol, 0, func(ctx context.Context) (*domain.Quote, error) {
		resp, err := c.chart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {"1d"}})
		if err != nil {
			return nil, err
		}
		result := resp.Chart.Result[0]
		meta := result.Meta
		if !domain.IsFinitePrice(meta.RegularMarketPrice) {
			return nil, httpjson.TagMessage(providerTag, "no regularMarketPrice", marketdata.ErrNoData)
		}

		q := &domain.Quote{
			Symbol:        symbol,
			Source:        domain.SourceYahoo,
			Current:       meta.RegularMarketPrice,
			High:          meta.DayHigh,
			Low:           meta.DayLow,
			PreviousClose: meta.ChartPreviousClose,
			Timestamp:     time.Unix(meta.RegularMarketTime, 0).UTC(),
		}
		if len(result.Indicators.Quote) > 0 && len(result.Indicators.Quote[0].Open) > 0 && result.Indicators.Quote[0].Open[0] != nil {
			q.Open = *result.Indicators.Quote[0].Open[0]
		}
		if q.PreviousClose > 0 {
			q.Change = q.Current - q.PreviousClose
			q.PercentChange = q.Change / q.PreviousClose * 100
		}
		return q, nil
	})
	return quote, httpjson.Tag(providerTag, err)
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData struct {
				TargetHighPrice   rawValue `json:"targetHighPrice"`
				TargetLowPrice    rawValue `json:"targetLowPrice"`
				TargetMeanPrice   rawValue `json:"targetMeanPrice"`
				TargetMedianPrice rawValue `json:"targetMedianPrice"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// PriceTarget returns analyst targets from the financialData summary module
func (c *Client) PriceTarget(ctx context.Context, symbol string) (*domain.PriceTarget, error) {
	target, err := clientdata.Fetch(ctx, c.cache, "yahoo_pt_"+symbol, 0, func(ctx context.Context) (*domain.PriceTarget, error) {
		var resp quoteSummaryResponse
		endpoint := c.summaryURL + "/v10/finance/quoteSummary/" + url.PathEscape(symbol)
		if err := c.http.GetJSON(ctx, endpoint, url.Values{"modules": {"financialData"}}, &resp); err != nil {
			return nil, err
		}
		if resp.QuoteSummary.Error != nil {
			return nil, httpjson.TagMessage(providerTag, resp.QuoteSummary.Error.Description, marketdata.ErrNoData)
		}
		if len(resp.QuoteSummary.Result) == 0 {
			return nil, httpjson.TagMessage(providerTag, "no financialData targets", marketdata.ErrNoData)
		}

		fd := resp.QuoteSummary.Result[0].FinancialData
		target := &domain.PriceTarget{
			Symbol:       symbol,
			Source:       domain.SourceYahoo,
			TargetHigh:   fd.TargetHighPrice.Raw,
			TargetLow:    fd.TargetLowPrice.Raw,
			TargetMean:   fd.TargetMeanPrice.Raw,
			TargetMedian: fd.TargetMedianPrice.Raw,
		}
		if target.TargetHigh == nil && target.TargetLow == nil && target.TargetMean == nil {
			return nil, httpjson.TagMessage(providerTag, "no financialData targets", marketdata.ErrNoData)
		}
		return target, nil
	})
	return target, httpjson.Tag(providerTag, err)
}
