package worker

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const statsLockKey = "order-stats"

// StatsSource counts orders by status
type StatsSource interface {
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
}

// Locker keeps replicas from running the same job at once
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Scheduler runs periodic maintenance jobs
type Scheduler struct {
	cron   *cron.Cron
	stats  StatsSource
	locker Locker
	logger *zap.Logger
}

// NewScheduler creates a scheduler. locker may be nil.
func NewScheduler(stats StatsSource, locker Locker) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		stats:  stats,
		locker: locker,
		logger: util.GetLogger(),
	}
}

// Start registers the order gauge refresh on the cron schedule and starts the cron loop
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.RefreshOrderGauge(ctx); err != nil {
			s.logger.Error("Order gauge refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("order_stats", spec))
	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RefreshOrderGauge publishes current order counts. It returns nil without work when
// another replica holds the lock.
func (s *Scheduler) RefreshOrderGauge(ctx context.Context) error {
	if s.locker != nil {
		ok, err := s.locker.AcquireLock(ctx, statsLockKey, 30*time.Second)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), statsLockKey); err != nil {
				s.logger.Warn("Failed to release lock", zap.String("lock", statsLockKey), zap.Error(err))
			}
		}()
	}

	counts, err := s.stats.CountByStatus(ctx)
	if err != nil {
		return err
	}
	for _, st := range models.OrderStatuses {
		util.OrdersByStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	return nil
}
