package xsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/xslog"
	"golang.org/x/sync/errgroup"
)

const DefaultSchedulerConcurrency = 4

// Scheduler periodically syncs every user with an active integration.
type Scheduler struct {
	sync        SyncService
	users       repository.IntegrationRepository
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
}

func NewScheduler(sync SyncService, users repository.IntegrationRepository, interval time.Duration, concurrency int, logger *slog.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultSchedulerConcurrency
	}
	return &Scheduler{
		sync:        sync,
		users:       users,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run syncs all users every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "starting sync scheduler", xslog.Duration(s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sync scheduler stopped")
			return
		case <-ticker.C:
			if err := s.SyncAll(ctx); err != nil {
				s.logger.ErrorContext(ctx, "scheduled sync failed", xslog.Error(err))
			}
		}
	}
}

// SyncAll runs one pass over every user, at most concurrency at a time.
func (s *Scheduler) SyncAll(ctx context.Context) error {
	userIDs, err := s.users.ListActiveUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing users to sync: %w", err)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			if _, err := s.sync.SyncUser(gctx, userID); err != nil {
				s.logger.WarnContext(gctx, "failed to sync user", xslog.UserID(userID), xslog.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "completed sync pass",
		xslog.Count(len(userIDs)), xslog.Duration(time.Since(start)))
	return nil
}
