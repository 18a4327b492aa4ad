package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/pkg/logger"
)

func newTestScheduler() *Scheduler {
	return New(logger.Nop(), WithRetry(1, time.Millisecond), WithTimeout(time.Second))
}

func TestScheduler_AddRemove(t *testing.T) {
	s := newTestScheduler()
	job := FuncJob{JobName: "noop", Spec: "0 30 15 * * 1-5", Fn: func(context.Context) error { return nil }}

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
	assert.Equal(t, []string{"noop"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("noop"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("noop"))
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := newTestScheduler()
	err := s.AddJob(FuncJob{JobName: "bad", Spec: "not a cron", Fn: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestScheduler_RunJobSyncRetries(t *testing.T) {
	s := newTestScheduler()

	calls := 0
	require.NoError(t, s.AddJob(FuncJob{
		JobName: "flaky",
		Spec:    "@daily",
		Fn: func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			return nil
		},
	}))

	result, err := s.RunJobSync(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, calls)

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	last, ok := history.Last()
	require.True(t, ok)
	assert.True(t, last.Success)

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, "@daily", stats.Schedule)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-12)
}

func TestScheduler_RunJobSyncFailure(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(FuncJob{
		JobName: "broken",
		Spec:    "@daily",
		Fn:      func(context.Context) error { return errors.New("boom") },
	}))

	result, err := s.RunJobSync(context.Background(), "broken")
	assert.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	require.NotNil(t, stats.LastFailure)

	_, err = s.RunJobSync(context.Background(), "missing")
	assert.Error(t, err)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	_, ok := h.Last()
	assert.False(t, ok)
	assert.Zero(t, h.GetSuccessRate())

	for i := 0; i < 105; i++ {
		h.AddResult(JobResult{Success: i%5 != 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetFailedResults(), 20)
	assert.InDelta(t, 0.8, h.GetSuccessRate(), 1e-12)
}
