package xsync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/artemis-health/artemis/internal/normalize"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// fetch pulls one cell from the vendor under the per-call timeout and
// normalizes it.
func (s *Service) fetch(
	ctx context.Context,
	in *wearable.Integration,
	client provider.Client,
	tok *oauth2.Token,
	dt wearable.DataType,
	r wearable.DateRange,
) (*normalize.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	raws, err := provider.Fetch(cctx, client, tok, dt, r)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, wearable.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %w", wearable.ErrProviderUnavailable, err)
		}
		return nil, err
	}
	return normalize.Batch(ctx, in.UserID, s.now(), raws), nil
}

// FetchLive reads the user's data straight from every connected provider
// without storing it. A provider that fails is logged and left out; only
// when all of them fail is wearable.ErrNoLiveData returned.
func (s *Service) FetchLive(ctx context.Context, userID string, r wearable.DateRange) (*wearable.Records, error) {
	integrations, err := s.repo.Integrations.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(integrations) == 0 {
		return nil, wearable.ErrNoIntegrations
	}

	logger := xslog.FromContext(ctx).With(xslog.UserID(userID))
	ctx = xslog.WithLogger(ctx, logger)

	var (
		mu        sync.Mutex
		out       = wearable.NewRecords()
		succeeded int
	)

	var g errgroup.Group
	for _, in := range integrations {
		g.Go(func() error {
			recs, err := s.fetchProviderLive(ctx, &in, r)
			if err != nil {
				logger.WarnContext(ctx, "live fetch failed", xslog.Provider(in.Provider), xslog.Error(err))
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			succeeded++
			out.Recovery = append(out.Recovery, recs.Recovery...)
			out.Sleep = append(out.Sleep, recs.Sleep...)
			out.Activity = append(out.Activity, recs.Activity...)
			return nil
		})
	}
	_ = g.Wait()

	if succeeded == 0 {
		return nil, wearable.ErrNoLiveData
	}
	// Vendors filter on record start times; the stored path filters on the
	// record's date. Clip so both return the same days.
	out.Clip(r)
	sortRecords(out)
	return out, nil
}

// fetchProviderLive succeeds when at least one data type could be read.
func (s *Service) fetchProviderLive(ctx context.Context, in *wearable.Integration, r wearable.DateRange) (*wearable.Records, error) {
	client, err := s.registry.Get(in.Provider)
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.GetValidToken(ctx, in.UserID, in.Provider)
	if err != nil {
		return nil, err
	}

	out := wearable.NewRecords()
	var errs []error
	for _, dt := range client.DataTypes() {
		res, err := s.fetch(ctx, in, client, tok, dt, r)
		if err != nil {
			if errors.Is(err, wearable.ErrNotConnected) {
				if derr := s.tokens.Deactivate(ctx, in, err); derr != nil {
					xslog.FromContext(ctx).ErrorContext(ctx, "failed to deactivate integration", xslog.Error(derr))
				}
				return nil, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", dt, err))
			continue
		}
		out.Recovery = append(out.Recovery, res.Recovery...)
		out.Sleep = append(out.Sleep, res.Sleep...)
		out.Activity = append(out.Activity, res.Activity...)
	}

	if len(errs) == len(client.DataTypes()) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func sortRecords(r *wearable.Records) {
	slices.SortFunc(r.Recovery, func(a, b wearable.RecoveryRecord) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Provider, b.Provider))
	})
	slices.SortFunc(r.Sleep, func(a, b wearable.SleepRecord) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Provider, b.Provider))
	})
	slices.SortFunc(r.Activity, func(a, b wearable.ActivityRecord) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Provider, b.Provider), cmp.Compare(a.ActivityID, b.ActivityID))
	})
}
