package worker

import (
	"context"
	"time"

	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/pkg/logger"
)

// OutboxCleaner prunes processed outbox rows past the retention window
// so the pending-events scan stays cheap.
type OutboxCleaner struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewOutboxCleaner(repo repository.OutboxRepository, retention, interval time.Duration, logger *logger.Logger) *OutboxCleaner {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &OutboxCleaner{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

func (c *OutboxCleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.retention)
			n, err := c.repo.DeleteProcessedBefore(ctx, cutoff)
			if err != nil {
				c.logger.Error(err, "failed to prune outbox events")
				continue
			}
			if n > 0 {
				c.logger.Info("pruned processed outbox events", "count", n)
			}
		}
	}
}
