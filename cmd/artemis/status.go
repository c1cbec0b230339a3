package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show integrations and per-cell sync status for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			integrations, err := a.Repo.Integrations.ListActive(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list integrations: %w", err)
			}
			if len(integrations) == 0 {
				fmt.Println("No active integrations")
			}
			for _, in := range integrations {
				fmt.Printf("%-8s connected %s", in.Provider, in.ConnectedAt.Format(time.RFC3339))
				if in.LastSyncAt != nil {
					fmt.Printf(", last sync %s", in.LastSyncAt.Format(time.RFC3339))
				}
				fmt.Println()
			}

			statuses, err := a.Repo.SyncStatus.List(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list sync status: %w", err)
			}
			if len(statuses) > 0 {
				fmt.Println()
			}
			for _, s := range statuses {
				fmt.Printf("%-8s %-9s %-14s %4d records", s.Provider, s.DataType, s.Status, s.RecordCount)
				if s.RetryAfter != nil && s.RetryAfter.After(time.Now()) {
					fmt.Printf("  retry after %s", s.RetryAfter.Format(time.RFC3339))
				}
				if s.LastError != nil {
					fmt.Printf("  %s", *s.LastError)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
