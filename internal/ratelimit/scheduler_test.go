package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schedulingSlack = 25 * time.Millisecond

// TestPacingUnderConcurrency verifies that concurrent submissions never dispatch faster than the rate
func TestPacingUnderConcurrency(t *testing.T) {
	s := NewScheduler(3, zerolog.Nop())
	defer s.Close()

	var mu sync.Mutex
	dispatchTimes := make([]time.Time, 0, 6)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Submit(context.Background(), func(context.Context) error {
				mu.Lock()
				dispatchTimes = append(dispatchTimes, time.Now())
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, dispatchTimes, 6)
	sort.Slice(dispatchTimes, func(i, j int) bool { return dispatchTimes[i].Before(dispatchTimes[j]) })

	minGap := time.Second/3 - schedulingSlack
	for i := 1; i < len(dispatchTimes); i++ {
		gap := dispatchTimes[i].Sub(dispatchTimes[i-1])
		assert.GreaterOrEqual(t, gap, minGap, "dispatch %d came %v after the previous one", i, gap)
	}
	assert.Equal(t, int64(6), s.Dispatched())
}

// TestFIFOOrder verifies that jobs are dispatched in arrival order
func TestFIFOOrder(t *testing.T) {
	s := NewScheduler(20, zerolog.Nop())
	defer s.Close()

	var mu sync.Mutex
	order := make([]int, 0, 5)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.Submit(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
		}(i)
		// Stagger arrivals well inside the 50ms pacing interval
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

// TestSlowCallDoesNotBlockNextDispatch verifies that dispatch only waits for the pacing gate
func TestSlowCallDoesNotBlockNextDispatch(t *testing.T) {
	s := NewScheduler(10, zerolog.Nop())
	defer s.Close()

	release := make(chan struct{})
	started := make(chan struct{}, 2)

	go func() {
		_ = s.Submit(context.Background(), func(context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background(), func(context.Context) error {
			started <- struct{}{}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second job was held back by the first one's response")
	}
	close(release)
}

func TestSubmit_ReturnsCallError(t *testing.T) {
	s := NewScheduler(100, zerolog.Nop())
	defer s.Close()

	err := s.Submit(context.Background(), func(context.Context) error {
		return assert.AnError
	})
	assert.Same(t, assert.AnError, err)
}

func TestSubmit_CancelledWhileQueued(t *testing.T) {
	s := NewScheduler(1, zerolog.Nop())
	defer s.Close()

	// First job takes the dispatch slot; the second has to wait a full second
	require.NoError(t, s.Submit(context.Background(), func(context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	called := false
	err := s.Submit(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.Close()
	assert.False(t, called)
}

func TestClose_DrainsQueueAndRejectsNewJobs(t *testing.T) {
	s := NewScheduler(50, zerolog.Nop())

	var mu sync.Mutex
	ran := 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Submit(context.Background(), func(context.Context) error {
				mu.Lock()
				ran++
				mu.Unlock()
				return nil
			})
		}()
	}
	// Let every submission reach the queue
	time.Sleep(50 * time.Millisecond)

	s.Close()
	wg.Wait()

	assert.Equal(t, 5, ran)
	assert.ErrorIs(t, s.Submit(context.Background(), func(context.Context) error { return nil }), ErrSchedulerClosed)

	// Close is idempotent
	s.Close()
}

func TestNewScheduler_Interval(t *testing.T) {
	three := NewScheduler(3, zerolog.Nop())
	defer three.Close()
	assert.Equal(t, time.Second/3, three.Interval())

	clamped := NewScheduler(0, zerolog.Nop())
	defer clamped.Close()
	assert.Equal(t, time.Second, clamped.Interval())
}
