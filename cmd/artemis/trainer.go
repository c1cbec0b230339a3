package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func trainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trainer",
		Short: "Manage trainer access to client data",
	}
	cmd.AddCommand(trainerGrantCmd(), trainerRevokeCmd(), trainerListCmd())
	return cmd
}

func trainerGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <trainer-id> <client-id>",
		Short: "Allow a trainer to read a client's stored data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.Repo.Trainers.Grant(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to grant access: %w", err)
			}
			fmt.Printf("Granted %s access to %s\n", args[0], args[1])
			return nil
		},
	}
}

func trainerRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <trainer-id> <client-id>",
		Short: "Remove a trainer's access to a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.Repo.Trainers.Revoke(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to revoke access: %w", err)
			}
			fmt.Printf("Revoked %s access to %s\n", args[0], args[1])
			return nil
		},
	}
}

func trainerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clients <trainer-id>",
		Short: "List a trainer's clients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			clients, err := a.Repo.Trainers.ListClients(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list clients: %w", err)
			}
			for _, c := range clients {
				state := "active"
				if !c.Active {
					state = "revoked"
				}
				fmt.Printf("%s  %-7s granted %s\n", c.ClientID, state, c.GrantedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
