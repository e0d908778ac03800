package clientdata

import "time"

// TTL constants used as max-age on read.
const (
	// DefaultTTL matches the daily refresh cadence of quotes and recommendations
	DefaultTTL = 24 * time.Hour

	// TTLClosedSession applies to per-date facts for trading days that have already closed.
	// Those values never change, so they are kept for a year.
	// The cleanup job's retention (CACHE_RETENTION) caps this when set lower.
	TTLClosedSession = 365 * 24 * time.Hour
)

// MaxAgeForSession returns the read max-age for a per-date fact.
// Zero means the cache default TTL.
func MaxAgeForSession(closed bool) time.Duration {
	if closed {
		return TTLClosedSession
	}
	return 0
}
