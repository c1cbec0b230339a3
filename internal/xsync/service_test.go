package xsync_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/client/whoop"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/provider/providertest"
	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/service/token"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xsync"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"
)

var testNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *xsync.Service
	repo  *repository.Repository
	whoop *providertest.Client
	oura  *providertest.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := storage.NewMemoryBackend(100, 100)
	t.Cleanup(func() { _ = backend.Close() })

	repo := repository.NewMemory()
	f := &fixture{
		repo:  repo,
		whoop: providertest.New(wearable.ProviderWhoop),
		oura:  providertest.New(wearable.ProviderOura),
	}

	for _, p := range []wearable.Provider{wearable.ProviderWhoop, wearable.ProviderOura} {
		err := repo.Integrations.Replace(t.Context(), &wearable.Integration{
			UserID:       "u1",
			Provider:     p,
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenExpiry:  testNow.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("Replace() error = %v", err)
		}
	}

	clock := func() time.Time { return testNow }
	registry := provider.NewRegistry(f.whoop, f.oura)
	tokens := token.New(repo.Integrations, registry, backend, token.WithClock(clock))
	f.svc = xsync.NewService(registry, repo, tokens, slog.New(slog.DiscardHandler), xsync.WithClock(clock))
	return f
}

func whoopRecovery(score int) providertest.FetchFunc {
	return func(context.Context, *oauth2.Token, wearable.DateRange) ([]wearable.RawRecord, error) {
		payload := fmt.Sprintf(`{"cycle_id":1,"created_at":"2024-01-15T11:00:00Z","score_state":"SCORED",`+
			`"score":{"recovery_score":%d,"hrv_rmssd_milli":54,"resting_heart_rate":52}}`, score)
		return []wearable.RawRecord{{
			Provider: wearable.ProviderWhoop,
			DataType: wearable.DataTypeRecovery,
			Kind:     whoop.KindRecovery,
			Payload:  []byte(payload),
		}}, nil
	}
}

func failing(err error) providertest.FetchFunc {
	return func(context.Context, *oauth2.Token, wearable.DateRange) ([]wearable.RawRecord, error) {
		return nil, err
	}
}

func outcomes(r xsync.Result) map[wearable.Provider]map[wearable.DataType]wearable.SyncOutcome {
	out := make(map[wearable.Provider]map[wearable.DataType]wearable.SyncOutcome)
	for p, cells := range r {
		out[p] = make(map[wearable.DataType]wearable.SyncOutcome)
		for dt, c := range cells {
			out[p][dt] = c.Outcome
		}
	}
	return out
}

func TestSyncUser_PartialFailureIsIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.whoop.Recovery = whoopRecovery(67)
	f.whoop.Sleep = failing(fmt.Errorf("%w: 502", wearable.ErrProviderUnavailable))
	f.oura.Recovery = failing(&wearable.RateLimitError{Provider: wearable.ProviderOura, RetryAfter: time.Hour})

	result, err := f.svc.SyncUser(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}

	want := map[wearable.Provider]map[wearable.DataType]wearable.SyncOutcome{
		wearable.ProviderWhoop: {
			wearable.DataTypeRecovery: wearable.SyncSuccess,
			wearable.DataTypeSleep:    wearable.SyncError,
			wearable.DataTypeActivity: wearable.SyncSuccess,
		},
		wearable.ProviderOura: {
			wearable.DataTypeRecovery: wearable.SyncRateLimited,
			wearable.DataTypeSleep:    wearable.SyncSuccess,
			wearable.DataTypeActivity: wearable.SyncSuccess,
		},
	}
	if diff := cmp.Diff(want, outcomes(result)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if !result.Failed() {
		t.Error("Failed() = false, want true")
	}
	if got := result[wearable.ProviderWhoop][wearable.DataTypeRecovery].Records; got != 1 {
		t.Errorf("whoop recovery records = %d, want 1", got)
	}

	recs, _ := f.repo.Recoveries.ListByDateRange(t.Context(), "u1", wearable.LastDays(testNow, 30))
	if len(recs) != 1 || *recs[0].Score != 67 {
		t.Errorf("stored recoveries = %+v, want one with score 67", recs)
	}

	sleep, err := f.repo.SyncStatus.Get(t.Context(), "u1", wearable.ProviderWhoop, wearable.DataTypeSleep)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sleep.Status != wearable.SyncError || sleep.LastError == nil {
		t.Errorf("whoop sleep status = %+v, want error with message", sleep)
	}

	limited, _ := f.repo.SyncStatus.Get(t.Context(), "u1", wearable.ProviderOura, wearable.DataTypeRecovery)
	if limited.RetryAfter == nil || !limited.RetryAfter.Equal(testNow.Add(time.Hour)) {
		t.Errorf("oura recovery retry_after = %v, want %v", limited.RetryAfter, testNow.Add(time.Hour))
	}

	in, _ := f.repo.Integrations.GetActive(t.Context(), "u1", wearable.ProviderWhoop)
	if in.LastSyncAt == nil {
		t.Error("LastSyncAt not recorded")
	}
}

func TestSyncUser_RateLimitedCellIsDeferred(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.oura.Recovery = failing(&wearable.RateLimitError{Provider: wearable.ProviderOura, RetryAfter: time.Hour})

	if _, err := f.svc.SyncUser(t.Context(), "u1"); err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	result, err := f.svc.SyncUser(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}

	cell := result[wearable.ProviderOura][wearable.DataTypeRecovery]
	if cell.Outcome != wearable.SyncRateLimited || cell.RetryAfter == nil {
		t.Errorf("oura recovery = %+v, want deferred rate_limited", cell)
	}
	if n := len(f.oura.Ranges(wearable.DataTypeRecovery)); n != 1 {
		t.Errorf("oura recovery fetches = %d, want 1", n)
	}
	if n := len(f.oura.Ranges(wearable.DataTypeSleep)); n != 2 {
		t.Errorf("oura sleep fetches = %d, want 2", n)
	}
}

func TestSyncUser_BackfillThenHighWaterMark(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for range 2 {
		if _, err := f.svc.SyncUser(t.Context(), "u1"); err != nil {
			t.Fatalf("SyncUser() error = %v", err)
		}
	}

	ranges := f.whoop.Ranges(wearable.DataTypeSleep)
	if len(ranges) != 2 {
		t.Fatalf("len(ranges) = %d, want 2", len(ranges))
	}
	if want := testNow.AddDate(0, 0, -xsync.BackfillDays); !ranges[0].Start.Equal(want) {
		t.Errorf("first window start = %v, want %v", ranges[0].Start, want)
	}
	if want := testNow.Add(-xsync.Overlap); !ranges[1].Start.Equal(want) {
		t.Errorf("second window start = %v, want %v", ranges[1].Start, want)
	}
	for _, r := range ranges {
		if !r.End.Equal(testNow) {
			t.Errorf("window end = %v, want %v", r.End, testNow)
		}
	}
}

func TestSyncUser_TruncatedFetchHoldsHighWaterMark(t *testing.T) {
	t.Parallel()

	backfillStart := testNow.AddDate(0, 0, -xsync.BackfillDays)
	through := testNow.AddDate(0, 0, -10)

	tests := []struct {
		name          string
		through       time.Time
		wantHighWater time.Time
		wantResume    time.Time
	}{
		{
			name:          "newest first listing",
			wantHighWater: backfillStart,
			wantResume:    backfillStart,
		},
		{
			name:          "oldest first listing",
			through:       through,
			wantHighWater: through,
			wantResume:    through.Add(-xsync.Overlap),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			first := true
			f.whoop.Sleep = func(ctx context.Context, _ *oauth2.Token, _ wearable.DateRange) ([]wearable.RawRecord, error) {
				if first {
					first = false
					provider.ReportTruncated(ctx, tt.through)
				}
				return nil, nil
			}

			highWater := func() *time.Time {
				t.Helper()
				status, err := f.repo.SyncStatus.Get(t.Context(), "u1", wearable.ProviderWhoop, wearable.DataTypeSleep)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				return status.HighWaterMark
			}

			if _, err := f.svc.SyncUser(t.Context(), "u1"); err != nil {
				t.Fatalf("SyncUser() error = %v", err)
			}
			if got := highWater(); got == nil || !got.Equal(tt.wantHighWater) {
				t.Errorf("HighWaterMark after truncated pass = %v, want %v", got, tt.wantHighWater)
			}

			if _, err := f.svc.SyncUser(t.Context(), "u1"); err != nil {
				t.Fatalf("SyncUser() error = %v", err)
			}
			ranges := f.whoop.Ranges(wearable.DataTypeSleep)
			if len(ranges) != 2 {
				t.Fatalf("len(ranges) = %d, want 2", len(ranges))
			}
			if !ranges[1].Start.Equal(tt.wantResume) {
				t.Errorf("second window start = %v, want %v", ranges[1].Start, tt.wantResume)
			}
			if got := highWater(); got == nil || !got.Equal(testNow) {
				t.Errorf("HighWaterMark after full pass = %v, want %v", got, testNow)
			}
		})
	}
}

func TestSyncUser_AuthFailureDeactivates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.whoop.Recovery = failing(fmt.Errorf("%w: 401", wearable.ErrNotConnected))

	result, err := f.svc.SyncUser(t.Context(), "u1")
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	for dt, cell := range result[wearable.ProviderWhoop] {
		if cell.Outcome != wearable.SyncNotConnected {
			t.Errorf("whoop %s = %s, want not_connected", dt, cell.Outcome)
		}
	}
	if n := len(f.whoop.Ranges(wearable.DataTypeSleep)); n != 0 {
		t.Errorf("whoop sleep fetches = %d, want 0", n)
	}
	if _, err := f.repo.Integrations.GetActive(t.Context(), "u1", wearable.ProviderWhoop); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetActive() error = %v, want ErrNotFound", err)
	}
	if got := result[wearable.ProviderOura][wearable.DataTypeRecovery].Outcome; got != wearable.SyncSuccess {
		t.Errorf("oura recovery = %s, want success", got)
	}
}

func TestSyncUser_ConcurrentPassesLeaveOneRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.whoop.Recovery = whoopRecovery(67)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			if _, err := f.svc.SyncUser(t.Context(), "u1"); err != nil {
				t.Errorf("SyncUser() error = %v", err)
			}
		})
	}
	wg.Wait()

	recs, err := f.repo.Recoveries.ListByDateRange(t.Context(), "u1", wearable.LastDays(testNow, 30))
	if err != nil {
		t.Fatalf("ListByDateRange() error = %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("len(recoveries) = %d, want 1", len(recs))
	}
}

func TestSyncInBackground_SurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.whoop.Recovery = whoopRecovery(67)

	ctx, cancel := context.WithCancel(t.Context())
	f.svc.SyncInBackground(ctx, "u1")
	cancel()
	f.svc.Wait()

	status, err := f.repo.SyncStatus.Get(t.Context(), "u1", wearable.ProviderWhoop, wearable.DataTypeRecovery)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if status.Status != wearable.SyncSuccess {
		t.Errorf("status = %s, want success", status.Status)
	}
}

func TestFetchLive(t *testing.T) {
	t.Parallel()

	t.Run("one provider failing still returns data", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.whoop.Recovery = whoopRecovery(67)
		unavailable := failing(wearable.ErrProviderUnavailable)
		f.oura.Recovery, f.oura.Sleep, f.oura.Activity = unavailable, unavailable, unavailable

		got, err := f.svc.FetchLive(t.Context(), "u1", wearable.LastDays(testNow, 7))
		if err != nil {
			t.Fatalf("FetchLive() error = %v", err)
		}
		if len(got.Recovery) != 1 || got.Recovery[0].Provider != wearable.ProviderWhoop {
			t.Errorf("Recovery = %+v, want one whoop record", got.Recovery)
		}

		// Live reads never write.
		stored, _ := f.repo.Recoveries.ListByDateRange(t.Context(), "u1", wearable.LastDays(testNow, 30))
		if len(stored) != 0 {
			t.Errorf("stored %d records, want 0", len(stored))
		}
	})

	t.Run("all providers failing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		unavailable := failing(wearable.ErrProviderUnavailable)
		for _, c := range []*providertest.Client{f.whoop, f.oura} {
			c.Recovery, c.Sleep, c.Activity = unavailable, unavailable, unavailable
		}

		_, err := f.svc.FetchLive(t.Context(), "u1", wearable.LastDays(testNow, 7))
		if !errors.Is(err, wearable.ErrNoLiveData) {
			t.Errorf("FetchLive() error = %v, want ErrNoLiveData", err)
		}
	})

	t.Run("no integrations", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.FetchLive(t.Context(), "nobody", wearable.LastDays(testNow, 7))
		if !errors.Is(err, wearable.ErrNoIntegrations) {
			t.Errorf("FetchLive() error = %v, want ErrNoIntegrations", err)
		}
	})
}

func TestFetchLive_MatchesStoredForSingleDay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.whoop.Recovery = whoopRecovery(67)
	if _, err := f.svc.SyncUser(t.Context(), "u1"); err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}

	dates := func(recs []wearable.RecoveryRecord) []string {
		var out []string
		for _, r := range recs {
			out = append(out, string(r.Provider)+"/"+r.Date)
		}
		return out
	}

	for _, day := range []string{"2024-01-15", "2024-01-16"} {
		d, _ := time.Parse(wearable.DateLayout, day)
		r := wearable.DateRange{Start: d, End: d}

		live, err := f.svc.FetchLive(t.Context(), "u1", r)
		if err != nil {
			t.Fatalf("FetchLive(%s) error = %v", day, err)
		}
		stored, err := f.repo.Recoveries.ListByDateRange(t.Context(), "u1", r)
		if err != nil {
			t.Fatalf("ListByDateRange(%s) error = %v", day, err)
		}
		if diff := cmp.Diff(dates(stored), dates(live.Recovery)); diff != "" {
			t.Errorf("%s live vs stored mismatch (-stored +live):\n%s", day, diff)
		}
	}
}
