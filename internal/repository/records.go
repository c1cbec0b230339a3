package repository

import (
	"context"
	"fmt"

	"github.com/artemis-health/artemis/internal/wearable"
	go_json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// sendUpserts runs one statement per record in a single round trip. Each
// statement is an atomic INSERT ... ON CONFLICT.
func sendUpserts(ctx context.Context, pool *pgxpool.Pool, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	if err := pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upserting records: %w", err)
	}
	return nil
}

type recoveryRepo struct {
	pool *pgxpool.Pool
}

const upsertRecovery = `
	INSERT INTO recovery_records (user_id, provider, date, score, hrv, heart_rate, skin_temp, spo2, raw, synced_at)
	VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (user_id, provider, date) DO UPDATE SET
		score = EXCLUDED.score,
		hrv = EXCLUDED.hrv,
		heart_rate = EXCLUDED.heart_rate,
		skin_temp = EXCLUDED.skin_temp,
		spo2 = EXCLUDED.spo2,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

func (r *recoveryRepo) UpsertBatch(ctx context.Context, records []wearable.RecoveryRecord) error {
	b := &pgx.Batch{}
	for _, rec := range records {
		b.Queue(upsertRecovery,
			rec.UserID, rec.Provider, rec.Date,
			rec.Score, rec.HRV, rec.HeartRate, rec.SkinTemp, rec.SpO2,
			[]byte(rec.Raw), rec.SyncedAt,
		)
	}
	return sendUpserts(ctx, r.pool, b)
}

func (r *recoveryRepo) ListByDateRange(ctx context.Context, userID string, dr wearable.DateRange) ([]wearable.RecoveryRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, provider, date::text, score, hrv, heart_rate, skin_temp, spo2, raw, synced_at
		FROM recovery_records
		WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, provider`,
		userID, dr.StartDate(), dr.EndDate(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying recoveries: %w", err)
	}
	defer rows.Close()

	out := []wearable.RecoveryRecord{}
	for rows.Next() {
		var (
			rec wearable.RecoveryRecord
			raw []byte
		)
		if err := rows.Scan(&rec.UserID, &rec.Provider, &rec.Date, &rec.Score, &rec.HRV, &rec.HeartRate,
			&rec.SkinTemp, &rec.SpO2, &raw, &rec.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning recovery: %w", err)
		}
		rec.Raw = raw
		out = append(out, rec)
	}
	return out, rows.Err()
}

type sleepRepo struct {
	pool *pgxpool.Pool
}

const upsertSleep = `
	INSERT INTO sleep_records (user_id, provider, date, start_time, end_time, duration_minutes, total_sleep_minutes,
		deep_minutes, light_minutes, rem_minutes, awake_minutes, efficiency, score, onset_latency_minutes, raw, synced_at)
	VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (user_id, provider, date) DO UPDATE SET
		start_time = EXCLUDED.start_time,
		end_time = EXCLUDED.end_time,
		duration_minutes = EXCLUDED.duration_minutes,
		total_sleep_minutes = EXCLUDED.total_sleep_minutes,
		deep_minutes = EXCLUDED.deep_minutes,
		light_minutes = EXCLUDED.light_minutes,
		rem_minutes = EXCLUDED.rem_minutes,
		awake_minutes = EXCLUDED.awake_minutes,
		efficiency = EXCLUDED.efficiency,
		score = EXCLUDED.score,
		onset_latency_minutes = EXCLUDED.onset_latency_minutes,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

func (r *sleepRepo) UpsertBatch(ctx context.Context, records []wearable.SleepRecord) error {
	b := &pgx.Batch{}
	for _, rec := range records {
		b.Queue(upsertSleep,
			rec.UserID, rec.Provider, rec.Date, rec.Start, rec.End,
			rec.DurationMinutes, rec.TotalSleepMinutes, rec.DeepMinutes, rec.LightMinutes, rec.REMMinutes,
			rec.AwakeMinutes, rec.Efficiency, rec.Score, rec.OnsetLatencyMinutes,
			[]byte(rec.Raw), rec.SyncedAt,
		)
	}
	return sendUpserts(ctx, r.pool, b)
}

func (r *sleepRepo) ListByDateRange(ctx context.Context, userID string, dr wearable.DateRange) ([]wearable.SleepRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, provider, date::text, start_time, end_time, duration_minutes, total_sleep_minutes,
			deep_minutes, light_minutes, rem_minutes, awake_minutes, efficiency, score, onset_latency_minutes,
			raw, synced_at
		FROM sleep_records
		WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, provider`,
		userID, dr.StartDate(), dr.EndDate(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying sleeps: %w", err)
	}
	defer rows.Close()

	out := []wearable.SleepRecord{}
	for rows.Next() {
		var (
			rec wearable.SleepRecord
			raw []byte
		)
		if err := rows.Scan(&rec.UserID, &rec.Provider, &rec.Date, &rec.Start, &rec.End,
			&rec.DurationMinutes, &rec.TotalSleepMinutes, &rec.DeepMinutes, &rec.LightMinutes, &rec.REMMinutes,
			&rec.AwakeMinutes, &rec.Efficiency, &rec.Score, &rec.OnsetLatencyMinutes,
			&raw, &rec.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning sleep: %w", err)
		}
		rec.Raw = raw
		out = append(out, rec)
	}
	return out, rows.Err()
}

type activityRepo struct {
	pool *pgxpool.Pool
}

const upsertActivity = `
	INSERT INTO activity_records (user_id, provider, activity_id, date, type, start_time, end_time, duration_minutes,
		distance_meters, calories, avg_heart_rate, max_heart_rate, strain, heart_rate_zones, raw, synced_at)
	VALUES ($1, $2, $3, $4::date, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (user_id, provider, activity_id) DO UPDATE SET
		date = EXCLUDED.date,
		type = EXCLUDED.type,
		start_time = EXCLUDED.start_time,
		end_time = EXCLUDED.end_time,
		duration_minutes = EXCLUDED.duration_minutes,
		distance_meters = EXCLUDED.distance_meters,
		calories = EXCLUDED.calories,
		avg_heart_rate = EXCLUDED.avg_heart_rate,
		max_heart_rate = EXCLUDED.max_heart_rate,
		strain = EXCLUDED.strain,
		heart_rate_zones = EXCLUDED.heart_rate_zones,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

func (r *activityRepo) UpsertBatch(ctx context.Context, records []wearable.ActivityRecord) error {
	b := &pgx.Batch{}
	for _, rec := range records {
		var zones []byte
		if len(rec.HeartRateZones) > 0 {
			var err error
			if zones, err = go_json.Marshal(rec.HeartRateZones); err != nil {
				return fmt.Errorf("encoding heart rate zones: %w", err)
			}
		}
		b.Queue(upsertActivity,
			rec.UserID, rec.Provider, rec.ActivityID, rec.Date, rec.Type, rec.Start, rec.End,
			rec.DurationMinutes, rec.DistanceMeters, rec.Calories, rec.AvgHeartRate, rec.MaxHeartRate,
			rec.Strain, zones, []byte(rec.Raw), rec.SyncedAt,
		)
	}
	return sendUpserts(ctx, r.pool, b)
}

func (r *activityRepo) ListByDateRange(ctx context.Context, userID string, dr wearable.DateRange) ([]wearable.ActivityRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, provider, activity_id, date::text, COALESCE(type, ''), start_time, end_time,
			duration_minutes, distance_meters, calories, avg_heart_rate, max_heart_rate, strain,
			heart_rate_zones, raw, synced_at
		FROM activity_records
		WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, start_time NULLS FIRST, provider, activity_id`,
		userID, dr.StartDate(), dr.EndDate(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	out := []wearable.ActivityRecord{}
	for rows.Next() {
		var (
			rec   wearable.ActivityRecord
			zones []byte
			raw   []byte
		)
		if err := rows.Scan(&rec.UserID, &rec.Provider, &rec.ActivityID, &rec.Date, &rec.Type, &rec.Start, &rec.End,
			&rec.DurationMinutes, &rec.DistanceMeters, &rec.Calories, &rec.AvgHeartRate, &rec.MaxHeartRate,
			&rec.Strain, &zones, &raw, &rec.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if len(zones) > 0 {
			if err := go_json.Unmarshal(zones, &rec.HeartRateZones); err != nil {
				return nil, fmt.Errorf("decoding heart rate zones: %w", err)
			}
		}
		rec.Raw = raw
		out = append(out, rec)
	}
	return out, rows.Err()
}
