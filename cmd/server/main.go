package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artemis-health/artemis/internal/app"
	"github.com/artemis-health/artemis/internal/config"
	"github.com/artemis-health/artemis/internal/server"
	"github.com/artemis-health/artemis/internal/server/handler"
	servermw "github.com/artemis-health/artemis/internal/server/middleware"
	"github.com/artemis-health/artemis/internal/service/auth"
	"github.com/artemis-health/artemis/internal/service/unified"
	"github.com/artemis-health/artemis/internal/xslog"
	"github.com/artemis-health/artemis/internal/xsync"
	"github.com/joho/godotenv"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

const (
	keyPort        = "port"
	keyGracePeriod = "grace_period"

	requestGracePeriod = 2 * time.Second
	shutdownTimeout    = 30 * time.Second
	jwksTTL            = 10 * time.Minute
)

func main() {
	_ = godotenv.Load()

	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Read()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	authService := auth.NewOAuth(a.Registry, a.Backend, a.Tokens, a.Sync)
	reader := unified.NewService(a.Sync, a.Sync, a.Repo)

	checks := map[string]handler.Pinger{"storage": a.Backend}
	if a.Pool != nil {
		checks["database"] = a.Pool
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:   logger,
		Limiter:  a.Backend,
		Verifier: servermw.NewJWTVerifier(initKeys(ctx, cfg, logger), cfg.Auth.Issuer, cfg.Auth.Audience),
	}, server.Handlers{
		Health:       handler.NewHealth(checks),
		OAuth:        handler.NewOAuth(authService, cfg.AppURL),
		Integrations: handler.NewIntegrations(a.Repo.Integrations, authService, a.Tokens),
		Sync:         handler.NewSync(a.Sync, a.Repo.SyncStatus),
		Wearables:    handler.NewWearables(reader, time.Now),
	})

	shutdownCoordinator := server.NewShutdownCoordinator(requestGracePeriod)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A synchronous POST /api/sync can run for the whole pass.
		WriteTimeout: cfg.Sync.PassTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return shutdownCoordinator.BaseContext()
		},
	}

	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	schedulerDone := make(chan struct{})
	if cfg.Sync.Interval > 0 {
		scheduler := xsync.NewScheduler(a.Sync, a.Repo.Integrations, cfg.Sync.Interval, cfg.Sync.MaxConcurrency, logger)
		go func() {
			defer close(schedulerDone)
			scheduler.Run(schedCtx)
		}()
	} else {
		close(schedulerDone)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting server",
			xslog.Version(),
			slog.String(keyPort, cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-done:
		logger.InfoContext(ctx, "shutdown signal received, initiating graceful shutdown")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	shutdownCoordinator.InitiateShutdown(shutdownCtx)
	logger.InfoContext(ctx, "request grace period complete, shutting down server",
		slog.Duration(keyGracePeriod, requestGracePeriod))

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	<-schedulerDone
	logger.InfoContext(ctx, "server stopped")
	return nil
}

func initKeys(ctx context.Context, cfg config.Config, logger *slog.Logger) servermw.KeySource {
	if cfg.Auth.JWKSURL == "" {
		logger.WarnContext(ctx, "AUTH_JWKS_URL not set, every /api request will be rejected")
		return servermw.StaticKeys{Set: jwk.NewSet()}
	}
	return servermw.NewRemoteKeys(cfg.Auth.JWKSURL, jwksTTL)
}
