package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/marketfacts/internal/ratelimit"
	"github.com/rs/zerolog"
)

// Client submits chat completions through a paced, retrying limiter
type Client struct {
	backend Backend
	limiter *ratelimit.Client
	timeout time.Duration
	log     zerolog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithDefaultTimeout sets the per-attempt timeout used when a call does not set one
func WithDefaultTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates an LLM client. Every attempt goes through limiter.
func NewClient(backend Backend, limiter *ratelimit.Client, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		backend: backend,
		limiter: limiter,
		log:     log.With().Str("component", "llm").Str("backend", backend.Name()).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the name of the backend in use
func (c *Client) Backend() string {
	return c.backend.Name()
}

// Configured reports whether the backend can be called at all
func (c *Client) Configured() bool {
	return c.backend.Configured()
}

// ChatCompletion submits messages to model. A missing key fails before anything is queued.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []Message, opts Options) (*Response, error) {
	if !c.backend.Configured() {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = c.timeout
	}

	start := time.Now()

	// An abandoned call may still be running on the queue's goroutine after Do returns
	var (
		attempts atomic.Int32
		mu       sync.Mutex
		resp     *Response
	)
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		attempts.Add(1)
		r, err := c.backend.SubmitChatCompletion(ctx, model, messages, opts)
		if err != nil {
			return err
		}
		mu.Lock()
		resp = r
		mu.Unlock()
		return nil
	})
	if err != nil {
		c.log.Error().
			Err(err).
			Str("model", model).
			Int32("attempts", attempts.Load()).
			Dur("elapsed", time.Since(start)).
			Msg("Chat completion failed")
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	c.log.Debug().
		Str("model", model).
		Int32("attempts", attempts.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("Chat completion succeeded")
	return resp, nil
}

