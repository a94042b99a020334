package worker

import (
	"context"
	"time"

	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/metrics"
)

// ExpirySweeper stamps requests whose deadline passed as expired. Readers
// evaluate expiry lazily regardless, so the sweep only keeps the stored
// status in line with what views already report.
type ExpirySweeper struct {
	repo     repository.RequestRepository
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewExpirySweeper(repo repository.RequestRepository, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *ExpirySweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ExpirySweeper{
		repo:     repo,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting expiry sweeper")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down expiry sweeper")
			return
		case <-ticker.C:
			n, err := s.repo.MarkExpired(ctx, time.Now())
			if err != nil {
				s.logger.Error(err, "failed to mark expired requests")
				continue
			}
			if n > 0 {
				s.metrics.RequestsExpired.Add(float64(n))
				s.logger.Info("marked requests expired", "count", n)
			}
		}
	}
}
