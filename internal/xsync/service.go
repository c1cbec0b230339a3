// Package xsync pulls wearable data from every connected provider into the
// unified record tables.
package xsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artemis-health/artemis/internal/metrics"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/service/token"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
	"golang.org/x/sync/errgroup"
)

const (
	// BackfillDays is how far back the first sync of a cell reaches.
	BackfillDays = 60

	// Overlap is subtracted from the high-water mark so late-arriving vendor
	// data inside the previous window is picked up again.
	Overlap = 2 * 24 * time.Hour

	DefaultCallTimeout       = 60 * time.Second
	DefaultBackgroundTimeout = 5 * time.Minute
)

type SyncService interface {
	// SyncUser syncs every (provider, data type) cell of the user's active
	// integrations. Cell failures are reported in the Result, not as an error.
	SyncUser(ctx context.Context, userID string) (Result, error)

	// SyncInBackground starts SyncUser detached from ctx's cancellation.
	SyncInBackground(ctx context.Context, userID string)
}

// CellResult is the outcome of one (provider, data type) cell.
type CellResult struct {
	Outcome    wearable.SyncOutcome `json:"status"`
	Records    int                  `json:"records"`
	Error      string               `json:"error,omitempty"`
	RetryAfter *time.Time           `json:"retryAfter,omitempty"`
}

type Result map[wearable.Provider]map[wearable.DataType]CellResult

// Failed reports whether any cell did not succeed.
func (r Result) Failed() bool {
	for _, cells := range r {
		for _, c := range cells {
			if c.Outcome != wearable.SyncSuccess {
				return true
			}
		}
	}
	return false
}

type Service struct {
	registry *provider.Registry
	repo     *repository.Repository
	tokens   token.Store
	logger   *slog.Logger

	now               func() time.Time
	backfillDays      int
	overlap           time.Duration
	callTimeout       time.Duration
	backgroundTimeout time.Duration

	users keyedMutex
	bg    sync.WaitGroup
}

var _ SyncService = (*Service)(nil)

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithBackfillDays(days int) Option {
	return func(s *Service) { s.backfillDays = days }
}

func WithOverlap(d time.Duration) Option {
	return func(s *Service) { s.overlap = d }
}

// WithCallTimeout bounds every single provider fetch.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) { s.callTimeout = d }
}

func WithBackgroundTimeout(d time.Duration) Option {
	return func(s *Service) { s.backgroundTimeout = d }
}

func NewService(registry *provider.Registry, repo *repository.Repository, tokens token.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		registry:          registry,
		repo:              repo,
		tokens:            tokens,
		logger:            logger,
		now:               time.Now,
		backfillDays:      BackfillDays,
		overlap:           Overlap,
		callTimeout:       DefaultCallTimeout,
		backgroundTimeout: DefaultBackgroundTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) SyncUser(ctx context.Context, userID string) (Result, error) {
	unlock := s.users.Lock(userID)
	defer unlock()

	metrics.SyncPassesInFlight.Inc()
	defer metrics.SyncPassesInFlight.Dec()

	integrations, err := s.repo.Integrations.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(xslog.UserID(userID))
	ctx = xslog.WithLogger(ctx, logger)
	logger.InfoContext(ctx, "starting sync", xslog.Count(len(integrations)))

	var mu sync.Mutex
	result := make(Result, len(integrations))

	var g errgroup.Group
	for _, in := range integrations {
		g.Go(func() error {
			cells := s.syncProvider(ctx, &in)
			mu.Lock()
			result[in.Provider] = cells
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.InfoContext(ctx, "finished sync", slog.Bool("partial_failure", result.Failed()))
	return result, nil
}

// SyncInBackground runs SyncUser on its own goroutine. The caller's
// cancellation does not stop it; the background timeout does.
func (s *Service) SyncInBackground(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.backgroundTimeout)

	s.bg.Go(func() {
		defer cancel()
		if _, err := s.SyncUser(ctx, userID); err != nil {
			s.logger.ErrorContext(ctx, "background sync failed", xslog.UserID(userID), xslog.Error(err))
		}
	})
}

// Wait blocks until every background sync has returned.
func (s *Service) Wait() {
	s.bg.Wait()
}

func (s *Service) syncProvider(ctx context.Context, in *wearable.Integration) map[wearable.DataType]CellResult {
	cells := make(map[wearable.DataType]CellResult)

	client, err := s.registry.Get(in.Provider)
	if err != nil {
		for _, dt := range wearable.DataTypes() {
			cells[dt] = s.fail(ctx, in, dt, err)
		}
		return cells
	}

	synced := false
	for i, dt := range client.DataTypes() {
		cell := s.syncCell(ctx, in, client, dt)
		cells[dt] = cell

		if cell.Outcome == wearable.SyncSuccess {
			synced = true
		}
		if cell.Outcome == wearable.SyncNotConnected {
			for _, rest := range client.DataTypes()[i+1:] {
				cells[rest] = CellResult{Outcome: wearable.SyncNotConnected, Error: cell.Error}
			}
			break
		}
	}

	if synced {
		if err := s.repo.Integrations.TouchLastSync(ctx, in.ID, s.now()); err != nil {
			xslog.FromContext(ctx).WarnContext(ctx, "failed to record last sync",
				xslog.Provider(in.Provider), xslog.Error(err))
		}
	}
	return cells
}
