package main

import (
	"context"

	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/repository/postgres"
	"github.com/xela07ax/workspace-api/migrations"
	"go.uber.org/zap"
)

func migrate(ctx context.Context, cfg *infra.Config, logger *zap.Logger) error {
	db, err := infra.OpenPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.NewMigrator(db, migrations.FS, logger).Up(ctx)
	if err != nil {
		return err
	}
	logger.Info("schema is up to date", zap.Ints("applied", applied))
	return nil
}
