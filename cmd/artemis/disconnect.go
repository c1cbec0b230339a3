package main

import (
	"fmt"

	"github.com/artemis-health/artemis/internal/wearable"
	"github.com/spf13/cobra"
)

func disconnectCmd() *cobra.Command {
	var userID, providerName string

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Revoke and deactivate a user's provider integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := wearable.ParseProvider(providerName)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.Tokens.Disconnect(ctx, userID, p); err != nil {
				return err
			}
			fmt.Printf("Disconnected %s for %s\n", p, userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&providerName, "provider", "", "whoop, oura, fitbit or garmin")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}
