package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Client runs calls through a Scheduler and retries transient failures
type Client struct {
	scheduler *Scheduler
	policy    RetryPolicy
	log       zerolog.Logger
	classify  func(error) bool
	sleep     func(context.Context, time.Duration) error
	jitter    func(time.Duration) time.Duration
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithClassifier replaces IsRetryable
func WithClassifier(classify func(error) bool) ClientOption {
	return func(c *Client) {
		c.classify = classify
	}
}

// WithSleeper replaces the backoff wait
func WithSleeper(sleep func(context.Context, time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithJitter replaces the jitter source. It receives the policy's MaxJitter.
func WithJitter(jitter func(time.Duration) time.Duration) ClientOption {
	return func(c *Client) {
		c.jitter = jitter
	}
}

// NewClient creates a retrying client on top of scheduler
func NewClient(scheduler *Scheduler, policy RetryPolicy, log zerolog.Logger, opts ...ClientOption) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	c := &Client{
		scheduler: scheduler,
		policy:    policy,
		log:       log.With().Str("component", "ratelimit").Logger(),
		classify:  IsRetryable,
		sleep:     sleepContext,
		jitter:    randomJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the retry policy in effect
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Scheduler returns the pacing scheduler
func (c *Client) Scheduler() *Scheduler {
	return c.scheduler
}

// Do runs fn through the scheduler, retrying while the failure is transient and
// attempts remain. Every retry is queued again behind other callers. The last
// error is returned unwrapped.
func (c *Client) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		lastErr = c.scheduler.Submit(ctx, fn)
		if lastErr == nil {
			return nil
		}

		if attempt == c.policy.MaxAttempts || ctx.Err() != nil || !c.classify(lastErr) {
			break
		}

		delay := c.policy.Backoff(attempt) + c.jitter(c.policy.MaxJitter)
		c.log.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", c.policy.MaxAttempts).
			Dur("delay", delay).
			Msg("Transient failure, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			break
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomJitter(maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(maxJitter) + 1))
}
