package marketdata

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredential marks a source that cannot run without an API key.
	// It is a precondition failure, not a runtime fault.
	ErrMissingCredential = errors.New("missing API key")

	// ErrNoData marks an empty or malformed provider payload
	ErrNoData = errors.New("no data")

	// ErrNoSources is returned when no source in a list is configured
	ErrNoSources = errors.New("no configured data sources")

	// ErrInvalidSymbol is returned for empty or malformed ticker symbols
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// AttemptError records one failed (date, provider) attempt.
// Date is empty for snapshot facts; Provider is "calendar" for skipped non-trading days.
type AttemptError struct {
	Date     string `json:"date,omitempty"`
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

func (a AttemptError) String() string {
	if a.Date == "" {
		return fmt.Sprintf("%s: %s", a.Provider, a.Message)
	}
	return fmt.Sprintf("%s %s: %s", a.Date, a.Provider, a.Message)
}

// ExhaustedError is returned when every attempt for a fact failed.
// Attempts are kept in the order they were made.
type ExhaustedError struct {
	Fact     string
	Symbol   string
	Attempts []AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s for %s: all sources failed: %s", e.Fact, e.Symbol, strings.Join(parts, " | "))
}
