package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/lms-announcement-api/internal/app"
	"github.com/noah-isme/lms-announcement-api/pkg/config"
	"github.com/noah-isme/lms-announcement-api/pkg/logger"
)

func newDeliverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Send today's scheduled announcement emails once and print the report",
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

			application, err := app.New(cmd.Context(), cfg, logr)
			if err != nil {
				return err
			}
			defer application.Close()

			report, runErr := application.Delivery.RunOnce(cmd.Context())
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return runErr
		},
	}
}
