package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/artemis-health/artemis/internal/app"
	"github.com/artemis-health/artemis/internal/config"
	"github.com/artemis-health/artemis/internal/version"
	"github.com/artemis-health/artemis/internal/xslog"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "artemis",
		Short:   "Manage wearable integrations and sync",
		Version: version.Get(),
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(newMigrationCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(disconnectCmd())
	rootCmd.AddCommand(trainerCmd())
	rootCmd.AddCommand(versionCmd())

	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}

var errNoDatabase = errors.New("DATABASE_URL is required")

// openApp builds the services against the configured database. Commands
// that read or change integrations make no sense against an in-memory store.
func openApp(ctx context.Context) (*app.App, *slog.Logger, error) {
	logger := xslog.NewLoggerFromEnv(os.Stderr)

	cfg, err := config.Read()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, errNoDatabase
	}

	a, err := app.New(xslog.WithLogger(ctx, logger), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
