package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aristath/marketfacts/internal/ratelimit"
	"github.com/rs/zerolog"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicBackend submits chat completions through the Messages API
type AnthropicBackend struct {
	apiKey string
	client anthropic.Client
	log    zerolog.Logger
}

// NewAnthropicBackend creates an Anthropic backend. The SDK's own retries are
// disabled so the shared retry policy is the only one in effect.
func NewAnthropicBackend(apiKey string, log zerolog.Logger, opts ...option.RequestOption) *AnthropicBackend {
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicBackend{
		apiKey: apiKey,
		client: anthropic.NewClient(clientOpts...),
		log:    log.With().Str("backend", "anthropic").Logger(),
	}
}

// Name returns the backend name
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// Configured reports whether an API key is set
func (b *AnthropicBackend) Configured() bool {
	return b.apiKey != ""
}

// SubmitChatCompletion performs one Messages.New call with its own timeout.
// System messages are lifted into the system prompt; ResponseFormat and Seed
// have no Messages API equivalent and are ignored.
func (b *AnthropicBackend) SubmitChatCompletion(ctx context.Context, model string, messages []Message, opts Options) (*Response, error) {
	if !b.Configured() {
		return nil, ErrMissingAPIKey
	}

	var system []string
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   defaultAnthropicMaxTokens,
		Temperature: anthropic.Float(opts.Temperature),
	}
	if opts.MaxCompletionTokens > 0 {
		params.MaxTokens = int64(opts.MaxCompletionTokens)
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if len(opts.ResponseFormat) > 0 || opts.Seed != nil {
		b.log.Debug().Msg("response_format and seed are not supported, ignoring")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Model: string(resp.Model),
		Text:  text.String(),
		Raw:   json.RawMessage(resp.RawJSON()),
	}, nil
}

// IsRetryable classifies errors from either backend. Anthropic API errors are
// judged by status; everything else falls through to the transport rules.
func IsRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ratelimit.IsRetryableStatus(apiErr.StatusCode)
	}
	return ratelimit.IsRetryable(err)
}
