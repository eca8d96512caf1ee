package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/pkg/config"
	"github.com/noah-isme/lms-announcement-api/pkg/database"
	"github.com/noah-isme/lms-announcement-api/pkg/logger"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}
	cmd.AddCommand(
		migrateSubcommand("up", "Apply all pending migrations", (*database.Migrator).Up),
		migrateSubcommand("down", "Roll back the most recent migration", (*database.Migrator).Down),
		migrateSubcommand("status", "Show migration status", (*database.Migrator).Status),
	)
	return cmd
}

func migrateSubcommand(use, short string, run func(*database.Migrator, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator, err := database.NewMigrator(db.DB)
			if err != nil {
				return err
			}
			logr.Info("running migration command", zap.String("command", use))
			if err := run(migrator, cmd.Context()); err != nil {
				logr.Error("migration command failed", zap.String("command", use), zap.Error(err))
				return err
			}
			logr.Info("migration command finished", zap.String("command", use))
			return nil
		},
	}
}
