package admin

import (
	"context"
	"fmt"

	"github.com/imtdakar/imtbot/internal/config"
	"github.com/imtdakar/imtbot/internal/database"
	"github.com/imtdakar/imtbot/internal/repository"
	"github.com/spf13/cobra"
)

// MigrateCmd applies the database migrations without starting the server.
func MigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("IMTBOT_DATABASE_URL is not set")
			}
			return database.Migrate(cfg.DatabaseURL, dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", database.DefaultMigrationsDir, "Migrations directory")
	return cmd
}

// SearchLogStatsCmd reports how many logged queries found no answer, which
// points at pages the corpus is missing.
func SearchLogStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unanswered",
		Short: "Count logged queries that found no relevant passage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("IMTBOT_DATABASE_URL is not set")
			}

			pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := repository.NewSearchLogRepository(pool).CountNotFound(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d logged queries found no relevant passage\n", n)
			return nil
		},
	}
}
