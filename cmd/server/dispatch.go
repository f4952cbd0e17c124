package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"studyblocks-backend/internal/middleware"
	"studyblocks-backend/internal/services"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one reminder invocation and print its summary as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		var publisher services.ReminderPublisher
		if a.redis != nil {
			publisher = services.NewRedisReminderPublisher(a.redis.Cache)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.InvocationTimeout)
		defer cancel()

		summary, err := a.newDispatcher(publisher).Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		// newApp applies migrations (Postgres) or the embedded schema (SQLite) when it opens the store.
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		a.close()
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

const defaultTokenTTL = 24 * time.Hour

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a service_role token for calling the trigger endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Only the signing secret is needed here, not a full config.
		godotenv.Load()
		token, err := middleware.NewServiceAuth(os.Getenv("JWT_SECRET")).GenerateServiceToken(tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", defaultTokenTTL, "token lifetime")
}
