// Package marketcal holds the trading-day calendar policy used by date-based lookups.
//
// Only weekends are non-trading days. Exchange holidays are not modelled, so a
// holiday costs one round of provider calls before the lookback moves on.
package marketcal

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical ISO calendar date format.
const DateLayout = "2006-01-02"

// NormalizeDate drops the time-of-day, keeping the calendar date as seen in t's location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp and returns the calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NormalizeDate(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsNonTradingDay reports whether no session is expected on t.
func IsNonTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// IsClosed reports whether the session for date has ended relative to now.
// A date strictly before today's calendar date is closed.
func IsClosed(date, now time.Time) bool {
	return NormalizeDate(date).Before(NormalizeDate(now))
}
