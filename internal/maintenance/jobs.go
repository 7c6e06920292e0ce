package maintenance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job names
const (
	JobPruneRateLimits   = "prune-rate-limits"
	JobAlertLogRetention = "alert-log-retention"
)

// RateLimitPruner drops rate limit windows that have elapsed
type RateLimitPruner interface {
	PruneRateLimits() int
}

// AlertLogPruner deletes alert log rows stored before a cutoff
type AlertLogPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PruneRateLimitsJob builds the rate limit pruning job
func PruneRateLimitsJob(spec string, p RateLimitPruner, logger *zap.Logger) Job {
	return Job{
		Name: JobPruneRateLimits,
		Spec: spec,
		Run: func(context.Context) error {
			if n := p.PruneRateLimits(); n > 0 {
				logger.Info("Pruned rate limit windows", zap.Int("count", n))
			}
			return nil
		},
	}
}

// AlertLogRetentionJob builds the job that deletes alert log rows older than retention
func AlertLogRetentionJob(spec string, retention time.Duration, p AlertLogPruner, now func() time.Time, logger *zap.Logger) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name: JobAlertLogRetention,
		Spec: spec,
		Run: func(ctx context.Context) error {
			if retention <= 0 {
				return nil
			}
			cutoff := now().Add(-retention)
			n, err := p.DeleteBefore(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune alert log: %w", err)
			}
			logger.Info("Pruned alert log",
				zap.Int64("deleted", n),
				zap.Time("cutoff", cutoff))
			return nil
		},
	}
}
