package xsync

import (
	"context"
	"errors"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/normalize"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
)

// syncCell runs the started -> success | error transition for one cell.
func (s *Service) syncCell(ctx context.Context, in *wearable.Integration, client provider.Client, dt wearable.DataType) CellResult {
	logger := xslog.FromContext(ctx).With(xslog.CellGroup(in.Provider, dt))
	ctx = xslog.WithLogger(ctx, logger)

	now := s.now()
	begin := time.Now()
	defer func() {
		metrics.SyncCellDuration.WithLabelValues(string(in.Provider), string(dt)).Observe(time.Since(begin).Seconds())
	}()

	status, err := s.repo.SyncStatus.Get(ctx, in.UserID, in.Provider, dt)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.WarnContext(ctx, "failed to load sync status", xslog.Error(err))
	}
	if status != nil && status.RetryAfter != nil && now.Before(*status.RetryAfter) {
		logger.InfoContext(ctx, "deferring rate limited cell", xslog.RetryAfter(status.RetryAfter.Sub(now)))
		metrics.SyncCellsTotal.WithLabelValues(string(in.Provider), string(dt), string(wearable.SyncRateLimited)).Inc()
		return CellResult{Outcome: wearable.SyncRateLimited, RetryAfter: status.RetryAfter}
	}

	window := s.window(status, now)
	if err := s.repo.SyncStatus.MarkStarted(ctx, in.UserID, in.Provider, dt, now); err != nil {
		logger.WarnContext(ctx, "failed to mark sync started", xslog.Error(err))
	}

	tok, err := s.tokens.GetValidToken(ctx, in.UserID, in.Provider)
	if err != nil {
		return s.fail(ctx, in, dt, err)
	}

	fctx, trunc := provider.WithTruncation(ctx)
	res, err := s.fetch(fctx, in, client, tok, dt, window)
	if err != nil {
		return s.fail(ctx, in, dt, err)
	}

	count, err := s.store(ctx, res)
	if err != nil {
		return s.fail(ctx, in, dt, err)
	}

	highWater := window.End
	if through, cut := trunc.Cut(); cut {
		// The records past the page limit were never seen; resume from where
		// the fetch is known complete so the next sync picks them up.
		highWater = window.Start
		if through.After(highWater) && through.Before(window.End) {
			highWater = through
		}
		logger.WarnContext(ctx, "fetch truncated, holding high-water mark", xslog.End(highWater))
	}

	if err := s.repo.SyncStatus.MarkSuccess(ctx, in.UserID, in.Provider, dt, now, count, highWater); err != nil {
		logger.WarnContext(ctx, "failed to mark sync success", xslog.Error(err))
	}
	metrics.SyncCellsTotal.WithLabelValues(string(in.Provider), string(dt), string(wearable.SyncSuccess)).Inc()
	metrics.RecordsUpsertedTotal.WithLabelValues(string(in.Provider), string(dt)).Add(float64(count))

	logger.InfoContext(ctx, "synced cell",
		xslog.Start(window.Start), xslog.End(window.End), xslog.Count(count))
	return CellResult{Outcome: wearable.SyncSuccess, Records: count}
}

// window backfills on a cell's first sync and otherwise resumes from the
// high-water mark minus the overlap, never reaching further back than the
// backfill.
func (s *Service) window(status *wearable.SyncStatus, now time.Time) wearable.DateRange {
	backfill := wearable.LastDays(now, s.backfillDays)
	if status == nil || status.HighWaterMark == nil {
		return backfill
	}

	start := status.HighWaterMark.Add(-s.overlap)
	if start.Before(backfill.Start) {
		start = backfill.Start
	}
	return wearable.DateRange{Start: start, End: now}
}

func (s *Service) store(ctx context.Context, res *normalize.Result) (int, error) {
	if len(res.Recovery) > 0 {
		if err := s.repo.Recoveries.UpsertBatch(ctx, res.Recovery); err != nil {
			return 0, err
		}
	}
	if len(res.Sleep) > 0 {
		if err := s.repo.Sleeps.UpsertBatch(ctx, res.Sleep); err != nil {
			return 0, err
		}
	}
	if len(res.Activity) > 0 {
		if err := s.repo.Activities.UpsertBatch(ctx, res.Activity); err != nil {
			return 0, err
		}
	}
	return res.Len(), nil
}

// fail records a failed cell. Authentication failures from a data endpoint
// deactivate the integration; rate limits remember when to try again.
func (s *Service) fail(ctx context.Context, in *wearable.Integration, dt wearable.DataType, err error) CellResult {
	logger := xslog.FromContext(ctx)
	now := s.now()

	cell := CellResult{Outcome: wearable.SyncError, Error: err.Error()}
	switch {
	case errors.Is(err, wearable.ErrNotConnected):
		cell.Outcome = wearable.SyncNotConnected
		if derr := s.tokens.Deactivate(ctx, in, err); derr != nil {
			logger.ErrorContext(ctx, "failed to deactivate integration", xslog.Error(derr))
		}
	case errors.Is(err, wearable.ErrRateLimited):
		cell.Outcome = wearable.SyncRateLimited
		if rl, ok := wearable.AsRateLimit(err); ok && rl.RetryAfter > 0 {
			at := now.Add(rl.RetryAfter)
			cell.RetryAfter = &at
		}
		logger.WarnContext(ctx, "provider rate limited", xslog.Error(err))
	default:
		logger.ErrorContext(ctx, "sync failed", xslog.Outcome(cell.Outcome), xslog.Error(err))
	}

	f := repository.SyncFailure{
		Outcome:    cell.Outcome,
		At:         now,
		Err:        cell.Error,
		RetryAfter: cell.RetryAfter,
	}
	if err := s.repo.SyncStatus.MarkFailed(ctx, in.UserID, in.Provider, dt, f); err != nil {
		logger.WarnContext(ctx, "failed to mark sync failed", xslog.Error(err))
	}
	metrics.SyncCellsTotal.WithLabelValues(string(in.Provider), string(dt), string(cell.Outcome)).Inc()
	return cell
}
