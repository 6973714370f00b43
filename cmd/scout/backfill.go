package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/research-scout/internal/memory"
	"github.com/jonathan/research-scout/internal/store"
)

func newBackfillCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Load historic ledger rows into the discovery memory",
		Long: `Embeds every ledger row that is not yet in the scout_memory collection.
Rows already present are skipped, so the command can be re-run safely.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("backfill requires database_url (or DATABASE_URL)")
			}

			ledgerPath := store.Layout{LogsDir: cfg.LogsDir()}.LedgerPath()
			if _, err := os.Stat(ledgerPath); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no ledger at %s", ledgerPath)
			}
			ledger, err := store.OpenLedger(ledgerPath)
			if err != nil {
				return err
			}
			records, err := ledger.Records()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			vectors, err := memory.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer vectors.Close()

			embedder, err := memory.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
			if err != nil {
				return err
			}

			mem := memory.New(vectors, embedder, memory.Options{RunID: "backfill"}, a.logger)
			added, err := mem.Backfill(ctx, records)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backfilled %d of %d ledger rows.\n", added, len(records))
			return nil
		},
	}
}
