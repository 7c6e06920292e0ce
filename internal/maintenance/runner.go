// Package maintenance runs periodic housekeeping jobs on cron schedules.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultJobTimeout = 5 * time.Minute

// Job is a named unit of periodic work
type Job struct {
	Name string
	// Spec is a six field cron expression with seconds
	Spec string
	Run  func(ctx context.Context) error
}

// Runner schedules jobs with robfig/cron
type Runner struct {
	logger  *zap.Logger
	cron    *cron.Cron
	parser  cron.Parser
	timeout time.Duration

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// NewRunner creates a new maintenance runner
func NewRunner(logger *zap.Logger) *Runner {
	logger = logger.Named("maintenance")
	cl := &cronLogger{logger: logger.Named("cron")}

	return &Runner{
		logger: logger,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		parser:  cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		timeout: defaultJobTimeout,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Add schedules a job. Adding a job with an existing name replaces it.
func (r *Runner) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job name and function are required")
	}
	if _, err := r.parser.Parse(job.Spec); err != nil {
		return fmt.Errorf("invalid cron expression for %s: %w", job.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[job.Name]; ok {
		r.cron.Remove(id)
	}

	id, err := r.cron.AddFunc(job.Spec, func() { r.execute(job) })
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
	}
	r.jobs[job.Name] = job
	r.entries[job.Name] = id

	r.logger.Info("Added maintenance job",
		zap.String("job", job.Name),
		zap.String("spec", job.Spec))
	return nil
}

// Remove unschedules a job and reports whether it existed
func (r *Runner) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[name]
	if !ok {
		return false
	}
	r.cron.Remove(id)
	delete(r.entries, name)
	delete(r.jobs, name)
	return true
}

// Next returns the next scheduled run of a job
func (r *Runner) Next(name string) (time.Time, bool) {
	r.mu.RLock()
	id, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}

// RunNow executes a job immediately in the caller's goroutine
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	return job.Run(ctx)
}

// Start starts the cron scheduler
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("Maintenance runner started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Maintenance runner stopped")
}

func (r *Runner) execute(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		r.logger.Error("Maintenance job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	r.logger.Debug("Maintenance job finished",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)))
}
