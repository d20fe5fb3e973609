package main

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"
	"time"

	"civicvoice/internal/config"
	"civicvoice/internal/store"

	"github.com/spf13/cobra"
)

var (
	migrationsDir string
	downSteps     int
)

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "", "migrations directory (defaults to the configured migrations_dir)")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "number of applied migrations to revert")
	migrateCmd.AddCommand(migrateDownCmd, migrateStatusCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply every *.up.sql migration that has not been recorded in
schema_migrations. The API server runs the same step on startup.

Examples:
  civicctl migrate
  civicctl migrate --dir ./db/migrations
  civicctl migrate status
  civicctl migrate down --steps 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(ctx context.Context, db *sql.DB, dir string) error {
			if err := store.ApplyMigrations(ctx, db, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied from %s\n", dir)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recently applied migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if downSteps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		return withDB(cmd, func(ctx context.Context, db *sql.DB, dir string) error {
			reverted, err := store.RollbackMigrations(ctx, db, dir, downSteps)
			for _, version := range reverted {
				fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", version)
			}
			return err
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(ctx context.Context, db *sql.DB, dir string) error {
			status, migrations, err := store.MigrationStatus(ctx, db, dir)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tAPPLIED")
			for _, m := range migrations {
				fmt.Fprintf(w, "%s\t%t\n", m.Version, status[m.Version])
			}
			return w.Flush()
		})
	},
}

func withDB(cmd *cobra.Command, fn func(context.Context, *sql.DB, string) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	_, db, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db, resolveMigrationsDir(cfg))
}

func resolveMigrationsDir(cfg config.Config) string {
	if migrationsDir != "" {
		return migrationsDir
	}
	return cfg.MigrationsDir
}
