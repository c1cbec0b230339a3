package unified_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/service/unified"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/google/go-cmp/cmp"
)

var week = wearable.DateRange{
	Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
}

type fakeLive struct {
	calls   atomic.Int32
	records *wearable.Records
	err     error
}

func (f *fakeLive) FetchLive(context.Context, string, wearable.DateRange) (*wearable.Records, error) {
	f.calls.Add(1)
	return f.records, f.err
}

type fakeSyncer struct {
	users []string
}

func (f *fakeSyncer) SyncInBackground(_ context.Context, userID string) {
	f.users = append(f.users, userID)
}

func score(v float64) *float64 { return &v }

func seedClient(t *testing.T, repo *repository.Repository) {
	t.Helper()
	err := repo.Recoveries.UpsertBatch(t.Context(), []wearable.RecoveryRecord{
		{UserID: "client", Provider: wearable.ProviderOura, Date: "2024-01-12", Score: score(81)},
	})
	if err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
}

func TestGet_OwnDataIsLive(t *testing.T) {
	t.Parallel()

	live := &fakeLive{records: wearable.NewRecords()}
	live.records.Recovery = append(live.records.Recovery, wearable.RecoveryRecord{Provider: wearable.ProviderWhoop, Date: "2024-01-15"})
	syncer := &fakeSyncer{}
	svc := unified.NewService(live, syncer, repository.NewMemory())

	resp, err := svc.Get(t.Context(), unified.Request{RequesterID: "me", ClientID: "me", Range: week, Sync: true})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.Source != unified.SourceLive || resp.UserID != "me" || len(resp.Records.Recovery) != 1 {
		t.Errorf("Get() = %+v, want live data for me", resp)
	}
	if diff := cmp.Diff([]string{"me"}, syncer.users); diff != "" {
		t.Errorf("background syncs mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_OwnDataErrors(t *testing.T) {
	t.Parallel()

	for _, want := range []error{wearable.ErrNoIntegrations, wearable.ErrNoLiveData} {
		t.Run(want.Error(), func(t *testing.T) {
			t.Parallel()

			syncer := &fakeSyncer{}
			svc := unified.NewService(&fakeLive{err: want}, syncer, repository.NewMemory())
			_, err := svc.Get(t.Context(), unified.Request{RequesterID: "me", Range: week, Sync: true})
			if !errors.Is(err, want) {
				t.Errorf("Get() error = %v, want %v", err, want)
			}
			if len(syncer.users) != 0 {
				t.Errorf("background syncs = %v, want none", syncer.users)
			}
		})
	}
}

func TestGet_TrainerWithoutGrantIsDenied(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemory()
	seedClient(t, repo)
	live := &fakeLive{}
	svc := unified.NewService(live, &fakeSyncer{}, repo)

	_, err := svc.Get(t.Context(), unified.Request{RequesterID: "trainer", ClientID: "client", Range: week})
	if !errors.Is(err, wearable.ErrForbidden) {
		t.Errorf("Get() error = %v, want ErrForbidden", err)
	}
	if live.calls.Load() != 0 {
		t.Error("trainer read hit the live path")
	}
}

func TestGet_TrainerReadsStoredRowsAndRevocationApplies(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	repo := repository.NewMemory()
	seedClient(t, repo)
	live := &fakeLive{}
	svc := unified.NewService(live, &fakeSyncer{}, repo)

	if err := repo.Trainers.Grant(ctx, "trainer", "client"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	req := unified.Request{RequesterID: "trainer", ClientID: "client", Range: week}
	resp, err := svc.Get(ctx, req)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.Source != unified.SourceStored || resp.UserID != "client" {
		t.Errorf("Get() = %+v, want stored data for client", resp)
	}
	if len(resp.Records.Recovery) != 1 || *resp.Records.Recovery[0].Score != 81 {
		t.Errorf("Recovery = %+v, want the stored record", resp.Records.Recovery)
	}
	if live.calls.Load() != 0 {
		t.Error("trainer read hit the live path")
	}

	if err := repo.Trainers.Revoke(ctx, "trainer", "client"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := svc.Get(ctx, req); !errors.Is(err, wearable.ErrForbidden) {
		t.Errorf("Get() after revoke error = %v, want ErrForbidden", err)
	}
}

func TestGet_InvalidRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    wearable.DateRange
	}{
		{name: "missing", r: wearable.DateRange{}},
		{name: "reversed", r: wearable.DateRange{Start: week.End, End: week.Start}},
		{name: "too long", r: wearable.DateRange{Start: week.End.AddDate(0, 0, -120), End: week.End}},
	}

	svc := unified.NewService(&fakeLive{}, &fakeSyncer{}, repository.NewMemory())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Get(t.Context(), unified.Request{RequesterID: "me", Range: tt.r})
			if !errors.Is(err, unified.ErrInvalidRange) {
				t.Errorf("Get() error = %v, want ErrInvalidRange", err)
			}
		})
	}
}
