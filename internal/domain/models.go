// Package domain provides the normalized fact types produced by provider adapters.
package domain

import (
	"math"
	"time"
)

// Source identifies which provider satisfied a fact
type Source string

const (
	// Historical close sources
	SourceFinnhubCandle     Source = "finnhub_candle"
	SourceAlphaVantageDaily Source = "alphavantage_daily"
	SourceYahooChart        Source = "yahoo_chart"
	SourceStooqCSV          Source = "stooq_csv"
	SourceTwelveData        Source = "twelvedata"

	// Snapshot sources
	SourceFinnhub      Source = "finnhub"
	SourceYahoo        Source = "yahoo"
	SourceAlphaVantage Source = "alphavantage"
)

// PriceFact is a resolved historical close.
// Date is the trading day actually satisfied, which may precede the requested date.
type PriceFact struct {
	Price  float64 `json:"price"`
	Source Source  `json:"source"`
	Date   string  `json:"date"`
}

// ClosePrice is a single provider's close for one date
type ClosePrice struct {
	Price  float64 `json:"price"`
	Source Source  `json:"source"`
}

// Valid reports whether the price is a usable finite number
func (c ClosePrice) Valid() bool {
	return IsFinitePrice(c.Price)
}

// Quote represents a current quote snapshot
type Quote struct {
	Timestamp     time.Time `json:"timestamp"`
	Symbol        string    `json:"symbol"`
	Source        Source    `json:"source"`
	Current       float64   `json:"current"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
}

// RecommendationTrend is one period of analyst recommendation counts
type RecommendationTrend struct {
	Period     string `json:"period"`
	Source     Source `json:"source"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
}

// Total returns the number of analysts counted in the period
func (r RecommendationTrend) Total() int {
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}

// EarningsSurprise is one reported quarter versus its estimate.
// Nil fields mean the provider did not report the value.
type EarningsSurprise struct {
	Period          string   `json:"period"`
	Source          Source   `json:"source"`
	Actual          *float64 `json:"actual"`
	Estimate        *float64 `json:"estimate"`
	Surprise        *float64 `json:"surprise"`
	SurprisePercent *float64 `json:"surprise_percent"`
}

// PriceTarget is the analyst consensus target for a symbol
type PriceTarget struct {
	Symbol       string   `json:"symbol"`
	Source       Source   `json:"source"`
	LastUpdated  string   `json:"last_updated,omitempty"`
	TargetHigh   *float64 `json:"target_high"`
	TargetLow    *float64 `json:"target_low"`
	TargetMean   *float64 `json:"target_mean"`
	TargetMedian *float64 `json:"target_median"`
}

// HasTargets reports whether at least one target value is present
func (p PriceTarget) HasTargets() bool {
	return p.TargetHigh != nil || p.TargetLow != nil || p.TargetMean != nil || p.TargetMedian != nil
}

// IsFinitePrice reports whether v is a finite, positive price
func IsFinitePrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}
