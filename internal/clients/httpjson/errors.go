package httpjson

import (
	"encoding/json"
	"errors"
)

// ProviderError tags a failure with the provider that produced it.
// Error() renders as "[PROVIDER] message"; the cause stays reachable through Unwrap.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return "[" + e.Provider + "] " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Tag wraps err for provider, preferring the API's own error message when the
// response body carried one.
func Tag(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Provider == provider {
		return err
	}
	msg := err.Error()
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if apiMsg := statusErr.APIMessage(); apiMsg != "" {
			msg = apiMsg
		}
	}
	return &ProviderError{Provider: provider, Message: msg, Err: err}
}

// TagMessage builds a provider error with an explicit message around a sentinel cause.
func TagMessage(provider, message string, cause error) error {
	return &ProviderError{Provider: provider, Message: message, Err: cause}
}

// APIMessage extracts an error message from a JSON error body, if any.
func (e *StatusError) APIMessage() string {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		return ""
	}
	for _, field := range []string{"error", "message", "Error Message"} {
		if s, ok := body[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
