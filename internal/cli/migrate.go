package cli

import (
	"context"
	"database/sql"
	"fmt"

	"drill-review-service/internal/config"
	"drill-review-service/internal/infra/postgres"
	pgmigrations "drill-review-service/internal/infra/postgres/migrations"
	"drill-review-service/internal/logging"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seedLeaders bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, seedLeaders)
		},
	}
	cmd.Flags().BoolVar(&seedLeaders, "seed-leaders", false, "upsert leaders.roster from config into the leaders table")
	return cmd
}

func runMigrations(ctx context.Context, configPath string, seedLeaders bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateDB(ctx, db, log); err != nil {
		return err
	}
	if seedLeaders {
		roster := cfg.RosterLeaders()
		if err := postgres.UpsertLeaders(ctx, db, roster); err != nil {
			return fmt.Errorf("seed leaders: %w", err)
		}
		log.Info("leaders seeded", zap.Int("count", len(roster)))
	}
	return nil
}

func openBun(cfg config.Config) (*bun.DB, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func migrateDB(ctx context.Context, db *bun.DB, log *zap.Logger) error {
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("no new migrations")
		return nil
	}
	log.Info("migrations applied", zap.String("group", group.String()))
	return nil
}
