// Package ratelimit paces and retries calls to a single downstream API.
//
// A Scheduler owns the pacing state: one worker drains a FIFO queue and never
// dispatches two jobs closer together than 1/maxPerSecond. A Client layers
// classified retries with exponential backoff on top, sending every attempt
// back through the same Scheduler.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestQueueSize = 100

// ErrSchedulerClosed is returned by Submit after Close
var ErrSchedulerClosed = errors.New("rate limit scheduler is closed")

// job is one queued call
type job struct {
	id       string
	ctx      context.Context
	fn       func(context.Context) error
	resultCh chan error
}

// Scheduler serializes dispatch of calls to one rate-limited endpoint
type Scheduler struct {
	interval time.Duration
	log      zerolog.Logger

	queue      chan job
	stopChan   chan struct{}
	workerDone chan struct{}
	inflight   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	dispatched atomic.Int64
}

// NewScheduler creates a scheduler allowing at most maxPerSecond dispatches per second
// and starts its worker. Values below 1 are treated as 1.
func NewScheduler(maxPerSecond int, log zerolog.Logger) *Scheduler {
	if maxPerSecond < 1 {
		maxPerSecond = 1
	}
	s := &Scheduler{
		interval:   time.Second / time.Duration(maxPerSecond),
		log:        log.With().Str("component", "ratelimit").Logger(),
		queue:      make(chan job, requestQueueSize),
		stopChan:   make(chan struct{}),
		workerDone: make(chan struct{}),
	}

	go s.worker()

	return s
}

// Interval returns the minimum gap between two dispatches
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Dispatched returns how many jobs have left the queue
func (s *Scheduler) Dispatched() int64 {
	return s.dispatched.Load()
}

// Submit enqueues fn and blocks until it has run or ctx is done.
// fn receives ctx and runs after every earlier submission has been dispatched.
func (s *Scheduler) Submit(ctx context.Context, fn func(context.Context) error) error {
	j := job{
		id:       uuid.NewString(),
		ctx:      ctx,
		fn:       fn,
		resultCh: make(chan error, 1),
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSchedulerClosed
	}
	select {
	case s.queue <- j:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case err := <-j.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker dispatches queued jobs in arrival order, honoring the pacing interval
func (s *Scheduler) worker() {
	defer close(s.workerDone)

	var lastDispatch time.Time

	dispatch := func(j job) {
		if err := j.ctx.Err(); err != nil {
			j.resultCh <- err
			return
		}

		if !lastDispatch.IsZero() {
			if wait := s.interval - time.Since(lastDispatch); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-j.ctx.Done():
					timer.Stop()
					j.resultCh <- j.ctx.Err()
					return
				}
			}
		}

		lastDispatch = time.Now()
		s.dispatched.Add(1)
		s.log.Debug().Str("job_id", j.id).Msg("Dispatching request")

		// The call runs on its own goroutine so a slow response does not
		// hold back the next dispatch beyond the pacing interval.
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			j.resultCh <- j.fn(j.ctx)
		}()
	}

	for {
		select {
		case <-s.stopChan:
			// Drain remaining jobs from queue before exiting
			for {
				select {
				case j := <-s.queue:
					dispatch(j)
				default:
					return
				}
			}
		case j := <-s.queue:
			dispatch(j)
		}
	}
}

// Close stops accepting jobs, dispatches everything already queued and
// waits for in-flight calls to return.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.stopChan)
		s.mu.Unlock()

		<-s.workerDone
		s.inflight.Wait()
		s.log.Debug().Int64("dispatched", s.dispatched.Load()).Msg("Scheduler closed")
	})
}
