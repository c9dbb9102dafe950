package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/buysell-kh/backoffice/internal/jobs"
)

// Cleaner prunes records older than a cutoff.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// CleanupJob removes idempotency keys once no browser can resubmit them.
type CleanupJob struct {
	Store   Cleaner
	MaxAge  time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle executes the cleanup.
func (j *CleanupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskTypeIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()
	if j.Store == nil {
		return nil
	}
	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if err := j.Store.Cleanup(ctx, maxAge); err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Debug("idempotency keys pruned", slog.Duration("older_than", maxAge))
	}
	return nil
}
