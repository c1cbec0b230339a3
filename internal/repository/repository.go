package repository

import (
	"context"
	"errors"
	"time"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	Integrations IntegrationRepository
	Recoveries   RecoveryRepository
	Sleeps       SleepRepository
	Activities   ActivityRepository
	SyncStatus   SyncStatusRepository
	Trainers     TrainerRepository
}

func NewPostgres(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Integrations: &integrationRepo{pool: pool},
		Recoveries:   &recoveryRepo{pool: pool},
		Sleeps:       &sleepRepo{pool: pool},
		Activities:   &activityRepo{pool: pool},
		SyncStatus:   &syncStatusRepo{pool: pool},
		Trainers:     &trainerRepo{pool: pool},
	}
}

type IntegrationRepository interface {
	// GetActive returns ErrNotFound when the user has no active integration
	// with the provider.
	GetActive(ctx context.Context, userID string, p wearable.Provider) (*wearable.Integration, error)
	ListActive(ctx context.Context, userID string) ([]wearable.Integration, error)
	// ListActiveUserIDs returns every user with at least one active integration.
	ListActiveUserIDs(ctx context.Context) ([]string, error)
	// Replace deactivates any active integration for the same user and
	// provider and inserts in as the new active one, atomically.
	Replace(ctx context.Context, in *wearable.Integration) error
	// UpdateTokens rotates the tokens of an active integration in place. An
	// empty refresh token keeps the stored one.
	UpdateTokens(ctx context.Context, id string, tok *oauth2.Token) error
	Deactivate(ctx context.Context, id string) error
	TouchLastSync(ctx context.Context, id string, at time.Time) error
}

// Record repositories upsert on their natural key, so writing the same
// record twice leaves one row holding the later write.

type RecoveryRepository interface {
	UpsertBatch(ctx context.Context, records []wearable.RecoveryRecord) error
	ListByDateRange(ctx context.Context, userID string, r wearable.DateRange) ([]wearable.RecoveryRecord, error)
}

type SleepRepository interface {
	UpsertBatch(ctx context.Context, records []wearable.SleepRecord) error
	ListByDateRange(ctx context.Context, userID string, r wearable.DateRange) ([]wearable.SleepRecord, error)
}

type ActivityRepository interface {
	UpsertBatch(ctx context.Context, records []wearable.ActivityRecord) error
	ListByDateRange(ctx context.Context, userID string, r wearable.DateRange) ([]wearable.ActivityRecord, error)
}

// SyncFailure describes a sync cell that did not succeed.
type SyncFailure struct {
	Outcome    wearable.SyncOutcome
	At         time.Time
	Err        string
	RetryAfter *time.Time
}

type SyncStatusRepository interface {
	Get(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType) (*wearable.SyncStatus, error)
	List(ctx context.Context, userID string) ([]wearable.SyncStatus, error)
	MarkStarted(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType, at time.Time) error
	MarkSuccess(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType, at time.Time, count int, highWater time.Time) error
	MarkFailed(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType, f SyncFailure) error
}

type TrainerRepository interface {
	// Grant activates the relationship, re-activating a revoked one.
	Grant(ctx context.Context, trainerID, clientID string) error
	// Revoke returns ErrNotFound when there is no active relationship.
	Revoke(ctx context.Context, trainerID, clientID string) error
	IsActive(ctx context.Context, trainerID, clientID string) (bool, error)
	ListClients(ctx context.Context, trainerID string) ([]wearable.TrainerClient, error)
}

func expiryOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
