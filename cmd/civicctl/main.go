// Package main implements civicctl, the operator CLI for administrator
// registrations and schema migrations.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"civicvoice/internal/config"
	"civicvoice/internal/store"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "civicctl",
	Short: "Operator commands for the Civic Voice API",
	Long: `civicctl manages administrator registrations and database migrations
for a Civic Voice deployment. It reads the same configuration as the API
server (CIVIC_* environment variables, .env, or --config).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(adminsCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openStore loads config and connects. The caller closes the returned db.
func openStore(ctx context.Context) (*store.PostgresStore, *sql.DB, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, config.Config{}, err
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, config.Config{}, fmt.Errorf("database connection failed: %w", err)
	}
	return store.NewPostgresStore(db), db, cfg, nil
}
