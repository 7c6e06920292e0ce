package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingPruner struct {
	calls atomic.Int32
}

func (p *countingPruner) PruneRateLimits() int {
	return int(p.calls.Add(1))
}

type recordingLogPruner struct {
	cutoff time.Time
	err    error
}

func (p *recordingLogPruner) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	p.cutoff = before
	return 4, p.err
}

func TestRunner_SchedulesJobs(t *testing.T) {
	// Setup
	r := NewRunner(zaptest.NewLogger(t))
	pruner := &countingPruner{}
	require.NoError(t, r.Add(PruneRateLimitsJob("* * * * * *", pruner, zaptest.NewLogger(t))))

	next, ok := r.Next(JobPruneRateLimits)
	require.True(t, ok)
	assert.False(t, next.IsZero())

	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		return pruner.calls.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRunner_AddRemoveRunNow(t *testing.T) {
	r := NewRunner(zaptest.NewLogger(t))
	ctx := context.Background()

	// Test case 1: invalid spec
	err := r.Add(Job{Name: "bad", Spec: "every minute", Run: func(context.Context) error { return nil }})
	require.Error(t, err)

	// Test case 2: missing function
	require.Error(t, r.Add(Job{Name: "empty", Spec: "0 * * * * *"}))

	// Test case 3: replace and run now
	var runs int
	job := Job{Name: "count", Spec: "0 0 * * * *", Run: func(context.Context) error { runs++; return nil }}
	require.NoError(t, r.Add(job))
	require.NoError(t, r.Add(job))
	require.NoError(t, r.RunNow(ctx, "count"))
	assert.Equal(t, 1, runs)

	// Test case 4: remove
	assert.True(t, r.Remove("count"))
	assert.False(t, r.Remove("count"))
	require.Error(t, r.RunNow(ctx, "count"))
	_, ok := r.Next("count")
	assert.False(t, ok)
}

func TestAlertLogRetentionJob(t *testing.T) {
	now := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := zaptest.NewLogger(t)

	// Test case 1: cutoff is now minus retention
	p := &recordingLogPruner{}
	job := AlertLogRetentionJob("0 0 3 * * *", 30*24*time.Hour, p, clock, logger)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), p.cutoff)

	// Test case 2: store errors are returned
	p = &recordingLogPruner{err: errors.New("locked")}
	job = AlertLogRetentionJob("0 0 3 * * *", time.Hour, p, clock, logger)
	require.Error(t, job.Run(context.Background()))

	// Test case 3: zero retention keeps everything
	p = &recordingLogPruner{}
	job = AlertLogRetentionJob("0 0 3 * * *", 0, p, clock, logger)
	require.NoError(t, job.Run(context.Background()))
	assert.True(t, p.cutoff.IsZero())
}
