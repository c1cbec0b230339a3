package repository

import (
	"context"
	"fmt"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/jackc/pgx/v5/pgxpool"
)

type trainerRepo struct {
	pool *pgxpool.Pool
}

func (r *trainerRepo) Grant(ctx context.Context, trainerID, clientID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trainer_clients (trainer_id, client_id, status, granted_at)
		VALUES ($1, $2, 'active', NOW())
		ON CONFLICT (trainer_id, client_id) DO UPDATE SET
			status = 'active',
			granted_at = NOW(),
			revoked_at = NULL
		WHERE trainer_clients.status <> 'active'`,
		trainerID, clientID,
	)
	if err != nil {
		return fmt.Errorf("granting trainer access: %w", err)
	}
	return nil
}

func (r *trainerRepo) Revoke(ctx context.Context, trainerID, clientID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE trainer_clients
		SET status = 'revoked', revoked_at = NOW()
		WHERE trainer_id = $1 AND client_id = $2 AND status = 'active'`,
		trainerID, clientID,
	)
	if err != nil {
		return fmt.Errorf("revoking trainer access: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *trainerRepo) IsActive(ctx context.Context, trainerID, clientID string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trainer_clients
			WHERE trainer_id = $1 AND client_id = $2 AND status = 'active'
		)`,
		trainerID, clientID,
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("checking trainer access: %w", err)
	}
	return active, nil
}

func (r *trainerRepo) ListClients(ctx context.Context, trainerID string) ([]wearable.TrainerClient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT trainer_id, client_id, status = 'active', granted_at, revoked_at
		FROM trainer_clients
		WHERE trainer_id = $1 AND status = 'active'
		ORDER BY granted_at`,
		trainerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trainer clients: %w", err)
	}
	defer rows.Close()

	out := []wearable.TrainerClient{}
	for rows.Next() {
		var tc wearable.TrainerClient
		if err := rows.Scan(&tc.TrainerID, &tc.ClientID, &tc.Active, &tc.GrantedAt, &tc.RevokedAt); err != nil {
			return nil, fmt.Errorf("scanning trainer client: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
