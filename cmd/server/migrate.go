package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/stardylog/backend/internal/repository/postgres"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	var (
		forceVersion int
		steps        int
	)

	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply or roll back the embedded PostgreSQL migrations in DATABASE_URL.

serve applies pending migrations on start, so this is only needed to roll
back, to inspect the schema version, or to repair a dirty migration state.
The SQLite store creates its schema itself and has nothing to migrate.

Examples:
  server migrate                  # same as "migrate up"
  server migrate down --steps 1
  server migrate version
  server migrate --force 1        # mark version 1 as clean after a failed run`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !cfg.UsesPostgres() {
				logger.Info("DATABASE_URL not set, SQLite schema is created at start-up; nothing to migrate")
				return nil
			}

			m, err := postgres.NewMigrator(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer m.Close()

			if forceVersion >= 0 {
				if err := m.Force(forceVersion); err != nil {
					return fmt.Errorf("forcing migration version %d: %w", forceVersion, err)
				}
				logger.Info("migration version forced", slog.Int("version", forceVersion))
				return nil
			}

			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			return runMigration(m, action, steps, logger)
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force", -1, "Force the migration version (use to fix a dirty migration state)")
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back with down")

	return cmd
}

func runMigration(m *migrate.Migrate, action string, steps int, logger *slog.Logger) error {
	var err error
	switch action {
	case "up":
		err = m.Up()
	case "down":
		if steps <= 0 {
			return fmt.Errorf("--steps must be positive, got %d", steps)
		}
		err = m.Steps(-steps)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if verr != nil {
			return fmt.Errorf("reading migration version: %w", verr)
		}
		logger.Info("schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or version)", action)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	logger.Info("migrations applied", slog.String("action", action))
	return nil
}
