package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReapCmd(configPath *string) *cobra.Command {
	var exclude string

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Remove every agent container and directory once",
		Long:  "reap lists all containers whose names carry an agent prefix and removes each one together with its bound directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rt, err := newRuntime(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report := rt.reaper.ReclaimOrphans(ctx, exclude)
			logger.Info("Reap finished",
				zap.Int("targets", len(report.Targets)),
				zap.Strings("failed", report.Failed),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d of %d agents\n",
				len(report.Targets)-len(report.Failed), len(report.Targets))
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d agents could not be fully removed", len(report.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exclude, "exclude", "", "agent id to leave in place")
	return cmd
}
