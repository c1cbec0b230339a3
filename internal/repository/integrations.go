package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

type integrationRepo struct {
	pool *pgxpool.Pool
}

const integrationColumns = `id, user_id, provider, COALESCE(provider_user_id, ''), access_token, refresh_token,
	token_expiry, scopes, connected_at, last_sync_at, active`

func scanIntegration(row pgx.Row) (*wearable.Integration, error) {
	var (
		in     wearable.Integration
		expiry *time.Time
	)
	err := row.Scan(
		&in.ID,
		&in.UserID,
		&in.Provider,
		&in.ProviderUserID,
		&in.AccessToken,
		&in.RefreshToken,
		&expiry,
		&in.Scopes,
		&in.ConnectedAt,
		&in.LastSyncAt,
		&in.Active,
	)
	if err != nil {
		return nil, err
	}
	if expiry != nil {
		in.TokenExpiry = *expiry
	}
	return &in, nil
}

func (r *integrationRepo) GetActive(ctx context.Context, userID string, p wearable.Provider) (*wearable.Integration, error) {
	query := `SELECT ` + integrationColumns + `
		FROM integrations
		WHERE user_id = $1 AND provider = $2 AND active`

	in, err := scanIntegration(r.pool.QueryRow(ctx, query, userID, p))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying integration: %w", err)
	}
	return in, nil
}

func (r *integrationRepo) ListActive(ctx context.Context, userID string) ([]wearable.Integration, error) {
	query := `SELECT ` + integrationColumns + `
		FROM integrations
		WHERE user_id = $1 AND active
		ORDER BY provider`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	out := []wearable.Integration{}
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning integration: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (r *integrationRepo) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id FROM integrations WHERE active ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return ids, nil
}

func (r *integrationRepo) Replace(ctx context.Context, in *wearable.Integration) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.ConnectedAt.IsZero() {
		in.ConnectedAt = time.Now()
	}
	in.Active = true

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE integrations
			SET active = FALSE, deactivated_at = NOW()
			WHERE user_id = $1 AND provider = $2 AND active`,
			in.UserID, in.Provider,
		)
		if err != nil {
			return fmt.Errorf("deactivating previous integration: %w", err)
		}

		scopes := in.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO integrations (id, user_id, provider, provider_user_id, access_token, refresh_token,
				token_expiry, scopes, connected_at, active)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, TRUE)`,
			in.ID,
			in.UserID,
			in.Provider,
			in.ProviderUserID,
			in.AccessToken,
			in.RefreshToken,
			expiryOrNil(in.TokenExpiry),
			scopes,
			in.ConnectedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting integration: %w", err)
		}
		return nil
	})
}

func (r *integrationRepo) UpdateTokens(ctx context.Context, id string, tok *oauth2.Token) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE integrations
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expiry = $4
		WHERE id = $1 AND active`,
		id, tok.AccessToken, tok.RefreshToken, expiryOrNil(tok.Expiry),
	)
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *integrationRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE integrations
		SET active = FALSE, deactivated_at = NOW()
		WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("deactivating integration: %w", err)
	}
	return nil
}

func (r *integrationRepo) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	if _, err := r.pool.Exec(ctx, `UPDATE integrations SET last_sync_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	return nil
}
