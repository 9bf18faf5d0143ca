package main

import (
	"fmt"

	"github.com/spf13/cobra"

	postgres "github.com/skyporter/luggage-api/internal/adapters/postgres"
	"github.com/skyporter/luggage-api/internal/platform/config"
	"github.com/skyporter/luggage-api/internal/platform/logging"
)

func newMigrateCmd() *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded SQL migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadEnv()
			if err != nil {
				return err
			}
			if databaseURL == "" {
				databaseURL = cfg.DatabaseURL
			}
			if databaseURL == "" {
				return fmt.Errorf("migrate: DATABASE_URL is required")
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			log.Info().Strs("applied", applied).Msg("migrations complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	return cmd
}
