package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/pkg/config"
	"github.com/marmos91/mediaforge/pkg/media/store/database"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Bring the media database schema up to date.

PostgreSQL schemas are versioned migrations; SQLite is migrated in place.
Badger and memory stores have no schema and need no migration.

Examples:
  # Apply pending migrations
  mediaforge migrate

  # Show the current schema version without changing anything
  mediaforge migrate --status`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "Only report the current schema version (PostgreSQL)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch cfg.Database.Type {
	case config.DatabasePostgres:
		pg := &cfg.Database.Postgres
		if !migrateStatusOnly {
			if err := database.RunMigrations(ctx, pg); err != nil {
				return err
			}
		}
		status, err := database.GetMigrationStatus(ctx, pg)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		if !status.Applied {
			_, _ = fmt.Fprintln(out, "No migrations applied")
			return nil
		}
		_, _ = fmt.Fprintf(out, "Schema version: %d (dirty: %t)\n", status.Version, status.Dirty)

	case config.DatabaseSQLite:
		if migrateStatusOnly {
			_, _ = fmt.Fprintln(out, "SQLite schemas are not versioned")
			return nil
		}
		logger.Info("Running database migrations", "type", cfg.Database.Type)
		store, err := database.New(ctx, cfg.Database.SQL())
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		defer func() { _ = store.Close() }()
		if err := store.Healthcheck(ctx); err != nil {
			return fmt.Errorf("migration verification failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Migrations completed successfully (database: %s)\n", cfg.Database.SQLite.Path)

	default:
		_, _ = fmt.Fprintf(out, "Database type %s has no schema to migrate\n", cfg.Database.Type)
	}
	return nil
}
