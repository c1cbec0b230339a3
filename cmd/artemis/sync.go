package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/artemis-health/artemis/internal/xsync"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var userID string
	var all bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync a user's connected wearables into storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" && !all {
				return fmt.Errorf("one of --user or --all is required")
			}

			ctx := cmd.Context()
			a, logger, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if all {
				sched := xsync.NewScheduler(a.Sync, a.Repo.Integrations, 0, a.Config.Sync.MaxConcurrency, logger)
				return sched.SyncAll(ctx)
			}

			result, err := a.Sync.SyncUser(ctx, userID)
			if err != nil {
				return err
			}
			printResult(result)
			if result.Failed() {
				return fmt.Errorf("sync finished with failed cells")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to sync")
	cmd.Flags().BoolVar(&all, "all", false, "sync every user with an active integration")
	return cmd
}

func printResult(result xsync.Result) {
	providers := make([]wearable.Provider, 0, len(result))
	for p := range result {
		providers = append(providers, p)
	}
	slices.Sort(providers)

	for _, p := range providers {
		for _, dt := range wearable.DataTypes() {
			cell, ok := result[p][dt]
			if !ok {
				continue
			}
			line := fmt.Sprintf("%-8s %-9s %-14s %4d", p, dt, cell.Outcome, cell.Records)
			if cell.Error != "" {
				line += "  " + cell.Error
			}
			fmt.Println(strings.TrimRight(line, " "))
		}
	}
}
