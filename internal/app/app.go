// Package app assembles the storage, provider clients and services shared by
// the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artemis-health/artemis/internal/client/fitbit"
	"github.com/artemis-health/artemis/internal/client/garmin"
	"github.com/artemis-health/artemis/internal/client/oura"
	"github.com/artemis-health/artemis/internal/client/whoop"
	"github.com/artemis-health/artemis/internal/config"
	"github.com/artemis-health/artemis/internal/migrations/postgres"
	"github.com/artemis-health/artemis/internal/provider"
	"github.com/artemis-health/artemis/internal/repository"
	"github.com/artemis-health/artemis/internal/service/token"
	"github.com/artemis-health/artemis/internal/storage"
	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xslog"
	"github.com/artemis-health/artemis/internal/xsync"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config   config.Config
	Pool     *pgxpool.Pool
	Repo     *repository.Repository
	Backend  storage.Backend
	Registry *provider.Registry
	Tokens   *token.Service
	Sync     *xsync.Service
}

// New connects storage, applies migrations and builds the services. Without
// DATABASE_URL the repository is in memory; without REDIS_URL the backend is.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg}

	pool, err := initPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.Pool = pool
	if pool != nil {
		a.Repo = repository.NewPostgres(pool)
	} else {
		a.Repo = repository.NewMemory()
	}

	backend, err := initBackend(ctx, cfg, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.Backend = backend

	a.Registry = NewRegistry(cfg, backend)
	if len(a.Registry.Providers()) == 0 {
		logger.WarnContext(ctx, "no wearable providers configured")
	}
	for _, p := range a.Registry.Providers() {
		logger.InfoContext(ctx, "provider enabled", xslog.Provider(p))
	}

	a.Tokens = token.New(a.Repo.Integrations, a.Registry, backend)
	a.Sync = xsync.NewService(a.Registry, a.Repo, a.Tokens, logger,
		xsync.WithBackfillDays(cfg.Sync.BackfillDays),
		xsync.WithOverlap(cfg.Sync.Overlap),
		xsync.WithCallTimeout(cfg.Sync.CallTimeout),
		xsync.WithBackgroundTimeout(cfg.Sync.PassTimeout),
	)
	return a, nil
}

// Close waits for background syncs and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.Sync != nil {
		a.Sync.Wait()
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			xslog.FromContext(ctx).ErrorContext(ctx, "failed to close backend", xslog.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// NewRegistry builds a client for every provider with credentials.
func NewRegistry(cfg config.Config, quotas storage.QuotaStore) *provider.Registry {
	var clients []provider.Client

	if c := cfg.Whoop; c.Enabled() {
		opts := []whoop.Option{
			whoop.WithTimeout(cfg.Sync.CallTimeout),
			whoop.WithMaxPages(cfg.Sync.MaxPages),
			whoop.WithQuota(provider.NewQuotaTracker(wearable.ProviderWhoop, provider.WhoopQuotaHeaders, quotas)),
		}
		if c.BaseURL != "" {
			opts = append(opts, whoop.WithBaseURL(c.BaseURL))
		}
		clients = append(clients, whoop.New(whoop.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  cfg.RedirectURL(string(wearable.ProviderWhoop)),
		}, opts...))
	}

	if c := cfg.Oura; c.Enabled() {
		opts := []oura.Option{
			oura.WithTimeout(cfg.Sync.CallTimeout),
			oura.WithMaxPages(cfg.Sync.MaxPages),
		}
		if c.BaseURL != "" {
			opts = append(opts, oura.WithBaseURL(c.BaseURL))
		}
		clients = append(clients, oura.New(oura.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  cfg.RedirectURL(string(wearable.ProviderOura)),
		}, opts...))
	}

	if c := cfg.Fitbit; c.Enabled() {
		opts := []fitbit.Option{
			fitbit.WithTimeout(cfg.Sync.CallTimeout),
			fitbit.WithMaxPages(cfg.Sync.MaxPages),
			fitbit.WithPacing(cfg.Sync.DayPacing),
			fitbit.WithQuotaStore(quotas),
		}
		if c.BaseURL != "" {
			opts = append(opts, fitbit.WithBaseURL(c.BaseURL))
		}
		clients = append(clients, fitbit.New(fitbit.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  cfg.RedirectURL(string(wearable.ProviderFitbit)),
		}, opts...))
	}

	if c := cfg.Garmin; c.Enabled() {
		opts := []garmin.Option{
			garmin.WithTimeout(cfg.Sync.CallTimeout),
			garmin.WithPacing(cfg.Sync.DayPacing),
		}
		if c.BaseURL != "" {
			opts = append(opts, garmin.WithBaseURL(c.BaseURL))
		}
		clients = append(clients, garmin.New(garmin.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  cfg.RedirectURL(string(wearable.ProviderGarmin)),
		}, opts...))
	}

	return provider.NewRegistry(clients...)
}

func initPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.Database.URL == "" {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory repository")
		return nil, nil
	}

	logger.InfoContext(ctx, "initializing PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	applied, err := postgres.Apply(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	logger.InfoContext(ctx, "migrations up to date", xslog.Count(len(applied)))

	return pool, nil
}

func initBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Backend, error) {
	if cfg.Redis.URL == "" {
		logger.InfoContext(ctx, "initializing memory backend")
		return storage.NewMemoryBackend(cfg.RateLimit.Limit, cfg.RateLimit.Burst), nil
	}

	client, err := dialRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "initializing Redis backend")
	backend, err := storage.NewRedisBackend(storage.RedisConfig{Client: client}, int(cfg.RateLimit.Limit))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return backend, nil
}

func dialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opt.ClientName = "artemis"

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
