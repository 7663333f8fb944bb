package job

import (
	"context"
	"time"

	"inmopresence/internal/repository"

	"go.uber.org/zap"
)

// Reaper purges presence rows that have been stale far longer than the
// online threshold. Those rows are already invisible to the query path;
// this is table hygiene for sessions that never sent an explicit
// offline. Satisfies cron.Job.
type Reaper struct {
	repo      *repository.PresenceRepository
	retention time.Duration
	logger    *zap.Logger
}

func NewReaper(repo *repository.PresenceRepository, retention time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{repo: repo, retention: retention, logger: logger}
}

func (j *Reaper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.retention)
	n, err := j.repo.DeleteStaleBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("presence reaper failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("presence reaper purged ghost rows", zap.Int64("count", n))
	}
}
