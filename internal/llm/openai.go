package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// APIError is a non-2xx response from the OpenAI API
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("OpenAI API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("OpenAI API error: HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPStatusCode exposes the status for retry classification
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// OpenAIBackend calls the chat completions endpoint directly
type OpenAIBackend struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// OpenAIOption configures the OpenAIBackend
type OpenAIOption func(*OpenAIBackend)

// WithOpenAIBaseURL points the backend at a compatible endpoint
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(b *OpenAIBackend) {
		b.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewOpenAIBackend creates an OpenAI backend
func NewOpenAIBackend(apiKey string, log zerolog.Logger, opts ...OpenAIOption) *OpenAIBackend {
	b := &OpenAIBackend{
		apiKey:     apiKey,
		baseURL:    defaultOpenAIBaseURL,
		httpClient: &http.Client{},
		log:        log.With().Str("backend", "openai").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Configured reports whether an API key is set
func (b *OpenAIBackend) Configured() bool {
	return b.apiKey != ""
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Options
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// SubmitChatCompletion performs one POST /v1/chat/completions with its own timeout
func (b *OpenAIBackend) SubmitChatCompletion(ctx context.Context, model string, messages []Message, opts Options) (*Response, error) {
	if !b.Configured() {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			apiErr.Message = er.Error.Message
			apiErr.Type = er.Error.Type
			if er.Error.Code != nil {
				apiErr.Code = fmt.Sprint(er.Error.Code)
			}
		}
		return nil, apiErr
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &Response{Model: cr.Model, Raw: raw}
	if len(cr.Choices) > 0 {
		out.Text = cr.Choices[0].Message.Content
	}
	return out, nil
}
