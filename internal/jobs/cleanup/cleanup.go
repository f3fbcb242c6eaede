package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type banPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job removes ban rows whose expiry is older than the retention window.
// Expired rows are kept for a while so operators can audit past bans.
type Job struct {
	bans      banPurger
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewBanCleanupJob(bans banPurger, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		bans:      bans,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.bans == nil {
		return nil
	}

	cutoff := j.now().UTC().Add(-j.retention)
	rows, err := j.bans.PurgeExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge expired bans: %w", err)
	}
	if rows > 0 {
		j.logger.Info("purge expired bans completed", zap.Int64("deleted", rows))
	}
	return nil
}
