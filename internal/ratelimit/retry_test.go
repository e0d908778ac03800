package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type statusError int

func (e statusError) Error() string       { return fmt.Sprintf("HTTP %d", int(e)) }
func (e statusError) HTTPStatusCode() int { return int(e) }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o deadline reached" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"408", statusError(408), true},
		{"429", statusError(429), true},
		{"500", statusError(500), true},
		{"503 wrapped", fmt.Errorf("call failed: %w", statusError(503)), true},
		{"400", statusError(400), false},
		{"401", statusError(401), false},
		{"404", statusError(404), false},
		{"status wins over message", fmt.Errorf("timeout: %w", statusError(404)), false},
		{"connection reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"network unreachable", fmt.Errorf("dial: %w", syscall.ENETUNREACH), true},
		{"net timeout", timeoutError{}, true},
		{"dns temporary", &net.DNSError{Err: "server misbehaving", Name: "api.openai.com", IsTemporary: true}, true},
		{"dns not found", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
		{"socket hang up message", errors.New("socket hang up"), true},
		{"timeout message", errors.New("request Timeout after 60s"), true},
		{"ECONNRESET message", errors.New("read ECONNRESET"), true},
		{"canceled", context.Canceled, false},
		{"closed scheduler", ErrSchedulerClosed, false},
		{"plain error", errors.New("invalid request body"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
	assert.Equal(t, 2*time.Second, p.Backoff(0))
}
