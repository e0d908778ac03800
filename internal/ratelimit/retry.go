package ratelimit

import (
	"context"
	"errors"
	"io"
	"net"
	"regexp"
	"syscall"
	"time"
)

// RetryPolicy bounds retries for one logical call
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 2s base delay and up to 300ms jitter
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxJitter:   300 * time.Millisecond,
	}
}

// Backoff returns the delay after the given failed attempt (1-based), without jitter:
// BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt-1))
}

// statusCoder is implemented by errors that carry an HTTP status
type statusCoder interface {
	HTTPStatusCode() int
}

var retryableMessage = regexp.MustCompile(`(?i)timeout|socket hang up|ECONNRESET|connection reset`)

var retryableErrnos = []syscall.Errno{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
}

// IsRetryableStatus reports whether an HTTP status is transient: 408, 429 or any 5xx
func IsRetryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// IsRetryable classifies err as transient. Errors carrying an HTTP status are
// judged by the status alone; otherwise transport faults and timeout-like
// messages are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSchedulerClosed) || errors.Is(err, context.Canceled) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatusCode())
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range retryableErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	return retryableMessage.MatchString(err.Error())
}
