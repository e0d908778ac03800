package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	err  error
	runs atomic.Int32
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return j.name }

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("every tuesday", &countingJob{name: "bad"})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestAddJob_RequiresSecondsField(t *testing.T) {
	s := New(zerolog.Nop())

	// Five fields is a standard cron line; this scheduler expects six
	assert.Error(t, s.AddJob("30 3 * * *", &countingJob{name: "five"}))
	assert.NoError(t, s.AddJob("0 30 3 * * *", &countingJob{name: "six"}))
}

func TestRunNow_RecordsStatus(t *testing.T) {
	s := New(zerolog.Nop())
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("disk full")}

	require.NoError(t, s.AddJob("@hourly", ok))
	require.NoError(t, s.AddJob("@hourly", failing))

	require.NoError(t, s.RunNow(ok))
	assert.EqualError(t, s.RunNow(failing), "disk full")

	jobs := s.Jobs()
	require.Len(t, jobs, 2)

	assert.Equal(t, "failing", jobs[0].Name)
	assert.Equal(t, "disk full", jobs[0].LastError)
	assert.Equal(t, 1, jobs[0].Runs)

	assert.Equal(t, "ok", jobs[1].Name)
	assert.Empty(t, jobs[1].LastError)
	assert.False(t, jobs[1].LastRun.IsZero())
}

func TestRunNow_UnregisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "adhoc"}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Empty(t, s.Jobs())
}

func TestStartStop_RunsScheduledJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "tick"}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.GreaterOrEqual(t, jobs[0].Runs, 1)
}
