package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type syncStatusRepo struct {
	pool *pgxpool.Pool
}

const syncStatusColumns = `user_id, provider, data_type, status, last_attempt_at, last_success_at, last_error,
	record_count, high_water_mark, retry_after`

func scanSyncStatus(row pgx.Row) (*wearable.SyncStatus, error) {
	var s wearable.SyncStatus
	err := row.Scan(
		&s.UserID,
		&s.Provider,
		&s.DataType,
		&s.Status,
		&s.LastAttemptAt,
		&s.LastSuccessAt,
		&s.LastError,
		&s.RecordCount,
		&s.HighWaterMark,
		&s.RetryAfter,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *syncStatusRepo) Get(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType) (*wearable.SyncStatus, error) {
	query := `SELECT ` + syncStatusColumns + `
		FROM sync_status
		WHERE user_id = $1 AND provider = $2 AND data_type = $3`

	s, err := scanSyncStatus(r.pool.QueryRow(ctx, query, userID, p, dt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync status: %w", err)
	}
	return s, nil
}

func (r *syncStatusRepo) List(ctx context.Context, userID string) ([]wearable.SyncStatus, error) {
	query := `SELECT ` + syncStatusColumns + `
		FROM sync_status
		WHERE user_id = $1
		ORDER BY provider, data_type`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sync status: %w", err)
	}
	defer rows.Close()

	out := []wearable.SyncStatus{}
	for rows.Next() {
		s, err := scanSyncStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync status: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *syncStatusRepo) MarkStarted(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_status (user_id, provider, data_type, status, last_attempt_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, provider, data_type) DO UPDATE SET
			status = EXCLUDED.status,
			last_attempt_at = EXCLUDED.last_attempt_at`,
		userID, p, dt, wearable.SyncStarted, at,
	)
	if err != nil {
		return fmt.Errorf("marking sync started: %w", err)
	}
	return nil
}

func (r *syncStatusRepo) MarkSuccess(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType, at time.Time, count int, highWater time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_status (user_id, provider, data_type, status, last_attempt_at, last_success_at,
			record_count, high_water_mark)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $7)
		ON CONFLICT (user_id, provider, data_type) DO UPDATE SET
			status = EXCLUDED.status,
			last_success_at = EXCLUDED.last_success_at,
			last_error = NULL,
			record_count = EXCLUDED.record_count,
			high_water_mark = GREATEST(sync_status.high_water_mark, EXCLUDED.high_water_mark),
			retry_after = NULL`,
		userID, p, dt, wearable.SyncSuccess, at, count, highWater,
	)
	if err != nil {
		return fmt.Errorf("marking sync success: %w", err)
	}
	return nil
}

func (r *syncStatusRepo) MarkFailed(ctx context.Context, userID string, p wearable.Provider, dt wearable.DataType, f SyncFailure) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_status (user_id, provider, data_type, status, last_attempt_at, last_error, retry_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, provider, data_type) DO UPDATE SET
			status = EXCLUDED.status,
			last_attempt_at = EXCLUDED.last_attempt_at,
			last_error = EXCLUDED.last_error,
			record_count = 0,
			retry_after = EXCLUDED.retry_after`,
		userID, p, dt, f.Outcome, f.At, f.Err, f.RetryAfter,
	)
	if err != nil {
		return fmt.Errorf("marking sync failed: %w", err)
	}
	return nil
}
