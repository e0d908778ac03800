// Package llm is request/response plumbing for chat-completion backends.
// It does not interpret response content.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultTimeout caps one chat completion attempt
const DefaultTimeout = 60 * time.Second

var (
	// ErrMissingAPIKey is returned before any request is queued when the backend has no key
	ErrMissingAPIKey = errors.New("missing LLM API key")

	// ErrInvalidRequest is returned for requests that can never succeed
	ErrInvalidRequest = errors.New("invalid chat completion request")
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-call generation settings. Zero values are omitted from the request
// except Temperature, which is always sent.
type Options struct {
	Temperature         float64         `json:"temperature"`
	ResponseFormat      json.RawMessage `json:"response_format,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Seed                *int64          `json:"seed,omitempty"`
	Timeout             time.Duration   `json:"-"`
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// Response is a completed chat turn
type Response struct {
	Model string          `json:"model"`
	Text  string          `json:"text"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// Backend submits one chat completion attempt
type Backend interface {
	Name() string
	// Configured reports whether the backend has an API key
	Configured() bool
	SubmitChatCompletion(ctx context.Context, model string, messages []Message, opts Options) (*Response, error)
}
