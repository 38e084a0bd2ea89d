package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

func main() {
	var configDirs []string

	root := &cobra.Command{
		Use:           "workspace-api",
		Short:         "Authentication and workspace authorization service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&configDirs, "config-dir", nil,
		"directories to look up config.yaml in (default: . and ./configs)")

	// load - общий пролог команд: конфиг + логгер
	load := func() (*infra.Config, *zap.Logger, error) {
		cfg, err := infra.LoadConfig(configDirs...)
		if err != nil {
			return nil, nil, err
		}
		logger, err := infra.NewLogger(cfg.Logger)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logger, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run HTTP, gRPC and metrics servers",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
				return serve(cmd.Context(), cfg, logger)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply embedded SQL migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
				return migrate(cmd.Context(), cfg, logger)
			},
		},
	)

	// SIGINT/SIGTERM отменяют контекст всех команд
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
