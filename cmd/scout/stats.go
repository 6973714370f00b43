package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/observability"
	"github.com/jonathan/research-scout/internal/store"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the lifetime verdict tally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			counts, err := store.NewTally(cfg.VerdictsFile).Load()
			if err != nil {
				a.logger.Warn("lifetime tally unreadable", zap.String("path", cfg.VerdictsFile), zap.Error(err))
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintLifetimeTally(counts)
			return nil
		},
	}
}
