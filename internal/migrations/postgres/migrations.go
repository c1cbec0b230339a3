package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/artemis-health/artemis/internal/xslog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var migrationsFS embed.FS

// Apply runs every embedded migration not yet recorded in migrations_history,
// in file name order, each in its own transaction. It returns the names of
// the migrations it applied.
func Apply(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	pending, err := Pending(ctx, pool)
	if err != nil {
		return nil, err
	}

	logger := xslog.FromContext(ctx)
	applied := make([]string, 0, len(pending))
	for _, filename := range pending {
		content, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+filename)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for stmt := range strings.SplitSeq(string(content), ";") {
				stmt = strings.TrimSpace(stmt)
				if stmt == "" {
					continue
				}
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, "INSERT INTO migrations_history (name) VALUES ($1)", filename)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		logger.InfoContext(ctx, "applied migration", slog.String("migration", filename))
		applied = append(applied, filename)
	}

	return applied, nil
}

// Pending lists embedded migrations that have not been applied.
func Pending(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	if err := createHistoryTable(ctx, pool); err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	done, err := appliedNames(ctx, pool)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, name := range names {
		if _, ok := done[name]; !ok {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

func createHistoryTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS migrations_history (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	return err
}

func appliedNames(ctx context.Context, pool *pgxpool.Pool) (map[string]struct{}, error) {
	rows, err := pool.Query(ctx, "SELECT name FROM migrations_history")
	if err != nil {
		return nil, fmt.Errorf("querying migrations history: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reading migrations history: %w", err)
	}

	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}
