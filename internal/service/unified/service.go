// Package unified serves wearable data in one shape regardless of provider,
// either live for the owner or from storage for an authorized trainer.
package unified

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
)

// MaxRange bounds how many days a single read may span.
const MaxRange = 90 * 24 * time.Hour

var ErrInvalidRange = errors.New("invalid date range")

type Source string

const (
	SourceLive   Source = "live"
	SourceStored Source = "stored"
)

type LiveFetcher interface {
	FetchLive(ctx context.Context, userID string, r wearable.DateRange) (*wearable.Records, error)
}

type BackgroundSyncer interface {
	SyncInBackground(ctx context.Context, userID string)
}

type Request struct {
	RequesterID string
	// ClientID selects another user's data. Empty or equal to RequesterID
	// means the requester's own data.
	ClientID string
	Range    wearable.DateRange
	// Sync starts a background store-sync after a live read.
	Sync bool
}

type Response struct {
	UserID  string            `json:"userId"`
	Source  Source            `json:"source"`
	Records *wearable.Records `json:"data"`
}

type Reader interface {
	Get(ctx context.Context, req Request) (*Response, error)
}

type Service struct {
	live     LiveFetcher
	syncer   BackgroundSyncer
	records  recordReaders
	trainers repository.TrainerRepository
}

type recordReaders struct {
	recovery repository.RecoveryRepository
	sleep    repository.SleepRepository
	activity repository.ActivityRepository
}

var _ Reader = (*Service)(nil)

func NewService(live LiveFetcher, syncer BackgroundSyncer, repo *repository.Repository) *Service {
	return &Service{
		live:   live,
		syncer: syncer,
		records: recordReaders{
			recovery: repo.Recoveries,
			sleep:    repo.Sleeps,
			activity: repo.Activities,
		},
		trainers: repo.Trainers,
	}
}

func (s *Service) Get(ctx context.Context, req Request) (*Response, error) {
	if err := validateRange(req.Range); err != nil {
		return nil, err
	}
	if req.ClientID == "" || req.ClientID == req.RequesterID {
		return s.ForUser(ctx, req.RequesterID, req.Range, req.Sync)
	}
	return s.ForClient(ctx, req.RequesterID, req.ClientID, req.Range)
}

// ForUser reads the owner's data live from every connected provider.
//
// Returns wearable.ErrNoIntegrations when nothing is connected and
// wearable.ErrNoLiveData when every provider failed.
func (s *Service) ForUser(ctx context.Context, userID string, r wearable.DateRange, sync bool) (*Response, error) {
	records, err := s.live.FetchLive(ctx, userID, r)
	if err != nil {
		return nil, err
	}

	if sync && s.syncer != nil {
		s.syncer.SyncInBackground(ctx, userID)
	}

	return &Response{UserID: userID, Source: SourceLive, Records: records}, nil
}

// ForClient reads a client's stored data on behalf of a trainer. The
// relationship is checked on every call; a revoked grant takes effect on the
// next read. Returns wearable.ErrForbidden without an active relationship.
func (s *Service) ForClient(ctx context.Context, trainerID, clientID string, r wearable.DateRange) (*Response, error) {
	ok, err := s.trainers.IsActive(ctx, trainerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("checking trainer relationship: %w", err)
	}
	if !ok {
		xslog.FromContext(ctx).WarnContext(ctx, "trainer read denied",
			xslog.UserID(trainerID), xslog.ClientID(clientID))
		return nil, wearable.ErrForbidden
	}

	records, err := s.Stored(ctx, clientID, r)
	if err != nil {
		return nil, err
	}
	return &Response{UserID: clientID, Source: SourceStored, Records: records}, nil
}

// Stored returns the persisted unified records for a user.
func (s *Service) Stored(ctx context.Context, userID string, r wearable.DateRange) (*wearable.Records, error) {
	out := wearable.NewRecords()

	recovery, err := s.records.recovery.ListByDateRange(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("listing recovery: %w", err)
	}
	sleep, err := s.records.sleep.ListByDateRange(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("listing sleep: %w", err)
	}
	activity, err := s.records.activity.ListByDateRange(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}

	out.Recovery = append(out.Recovery, recovery...)
	out.Sleep = append(out.Sleep, sleep...)
	out.Activity = append(out.Activity, activity...)
	return out, nil
}

func validateRange(r wearable.DateRange) error {
	switch {
	case r.Start.IsZero() || r.End.IsZero():
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	case r.End.Before(r.Start):
		return fmt.Errorf("%w: end before start", ErrInvalidRange)
	case r.End.Sub(r.Start) > MaxRange:
		return fmt.Errorf("%w: longer than %d days", ErrInvalidRange, int(MaxRange.Hours()/24))
	}
	return nil
}
