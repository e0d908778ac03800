package marketcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNonTradingDay(t *testing.T) {
	tests := []struct {
		date     string
		expected bool
	}{
		{"2024-01-05", false}, // Friday
		{"2024-01-06", true},  // Saturday
		{"2024-01-07", true},  // Sunday
		{"2024-01-08", false}, // Monday
		{"2024-01-01", false}, // New Year's Day: holidays are not modelled
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := ParseDate(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, IsNonTradingDay(d))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-06", FormatDate(d))

	d, err = ParseDate("2024-01-06T21:15:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("06/01/2024")
	assert.Error(t, err)
}

func TestNormalizeDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	evening := time.Date(2024, 1, 5, 23, 30, 0, 0, ny)

	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), NormalizeDate(evening))
}

func TestIsClosed(t *testing.T) {
	now := time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC)

	assert.True(t, IsClosed(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), now))
	assert.False(t, IsClosed(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), now))
	assert.False(t, IsClosed(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), now))
}
