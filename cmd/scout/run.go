package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/audit"
	"github.com/jonathan/research-scout/internal/classify"
	"github.com/jonathan/research-scout/internal/config"
	"github.com/jonathan/research-scout/internal/enrich"
	"github.com/jonathan/research-scout/internal/llm"
	"github.com/jonathan/research-scout/internal/memory"
	"github.com/jonathan/research-scout/internal/notify"
	"github.com/jonathan/research-scout/internal/observability"
	"github.com/jonathan/research-scout/internal/pipeline"
	"github.com/jonathan/research-scout/internal/querygen"
	"github.com/jonathan/research-scout/internal/safety"
	"github.com/jonathan/research-scout/internal/session"
	"github.com/jonathan/research-scout/internal/sieve"
	"github.com/jonathan/research-scout/internal/sources"
	"github.com/jonathan/research-scout/internal/store"
	"github.com/jonathan/research-scout/internal/triage"
)

type runFlags struct {
	refresh       bool
	recheck       bool
	shutdownAfter bool
	researchPath  string
	ollamaURL     string
	webhookURL    string
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one discovery pass",
		Long: `Resolves the search queries (cache, generation or the master set), runs the
academic and grey-literature passes through the triage cascade and closes the
session with a final tally flush.

--recheck alone re-evaluates historical LOW verdicts and exits. Combined with
--shutdown-after it rechecks, runs a normal pass and then runs the configured
shutdown command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(func(c *config.Config) {
				if cmd.Flags().Changed("research-path") {
					c.ResearchPath = f.researchPath
				}
				if cmd.Flags().Changed("ollama-url") {
					c.OllamaURL = f.ollamaURL
				}
				if cmd.Flags().Changed("webhook-url") {
					c.WebhookURL = f.webhookURL
				}
			})
			if err != nil {
				return err
			}
			if f.shutdownAfter && cfg.ShutdownCommand == "" {
				return fmt.Errorf("--shutdown-after requires shutdown_command in the config")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScout(ctx, cfg, f, a.logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "Ignore the query cache and generate new queries")
	cmd.Flags().BoolVar(&f.recheck, "recheck", false, "Re-evaluate historical LOW verdicts under the current rules")
	cmd.Flags().BoolVar(&f.shutdownAfter, "shutdown-after", false, "Run the shutdown command when the run completes")
	cmd.Flags().StringVar(&f.researchPath, "research-path", "", "Research workspace root (overrides config)")
	cmd.Flags().StringVar(&f.ollamaURL, "ollama-url", "", "Ollama server URL (overrides config)")
	cmd.Flags().StringVar(&f.webhookURL, "webhook-url", "", "Discord webhook URL (overrides config)")
	return cmd
}

func runScout(ctx context.Context, cfg config.Config, f runFlags, logger *zap.Logger, out io.Writer) error {
	sess, err := session.Open(session.Options{
		Layout:    store.Layout{LogsDir: cfg.LogsDir()},
		TallyPath: cfg.VerdictsFile,
		MirrorDir: cfg.MirrorDir,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _, _ = sess.Close() }()
	logger = sess.Logger()

	opts, cleanup, err := wire(ctx, cfg, sess, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts.Refresh = f.refresh
	opts.Recheck = f.recheck
	opts.ShutdownAfter = f.shutdownAfter
	opts.Printer = observability.NewPrinter(out)

	_, err = pipeline.Run(ctx, opts)
	return err
}

// wire builds every collaborator of a run. Optional services that fail to
// start are logged and left out; the run continues without them.
func wire(ctx context.Context, cfg config.Config, sess *session.Session, logger *zap.Logger) (pipeline.RunOptions, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	local, err := llm.NewOllamaClient(&llm.Config{
		Provider: llm.ProviderOllama,
		BaseURL:  cfg.OllamaURL,
		Models: map[llm.ModelTier]string{
			llm.TierLite:     cfg.BouncerModel,
			llm.TierStandard: cfg.ConfirmModel,
			llm.TierAdvanced: cfg.BrainstormModel,
		},
	})
	if err != nil {
		return pipeline.RunOptions{}, cleanup, err
	}
	var bouncer, confirmer, brainstorm llm.Client = local, local, local

	if cfg.ConfirmProvider == string(llm.ProviderGemini) {
		gcfg := llm.DefaultGeminiConfig()
		if cfg.ConfirmModel != config.Defaults().ConfirmModel {
			gcfg = gcfg.WithModel(llm.TierStandard, cfg.ConfirmModel)
		}
		gemini, err := llm.NewClient(ctx, gcfg, cfg.GeminiAPIKey)
		if err != nil {
			return pipeline.RunOptions{}, cleanup, err
		}
		closers = append(closers, func() { _ = gemini.Close() })
		confirmer = gemini
	}

	if cfg.AuditDBPath != "" {
		auditStore, err := audit.Open(cfg.AuditDBPath)
		if err != nil {
			logger.Warn("classifier audit disabled", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = auditStore.Close() })
			runID := sess.ID.String()
			bouncer = audit.WrapClient(bouncer, auditStore, runID, logger)
			confirmer = audit.WrapClient(confirmer, auditStore, runID, logger)
			brainstorm = audit.WrapClient(brainstorm, auditStore, runID, logger)
		}
	}

	var mem *memory.Memory
	if cfg.DatabaseURL != "" {
		mem, err = openMemory(ctx, cfg, sess.ID.String(), logger, &closers)
		if err != nil {
			logger.Warn("discovery memory disabled", zap.Error(err))
		}
	}

	triageOpts := triage.Options{
		Sieve: sieve.New(cfg.SieveKeywords),
		Batch: classify.NewBatchClassifier(bouncer, 0, logger),
		Confirmer: classify.NewConfirmer(confirmer, classify.ConfirmerOptions{
			Rules: classify.LoadRules(cfg.RulesPath),
			Delay: config.Seconds(cfg.ConfirmDelaySec),
		}, logger),
		Notifier: notify.New(notify.Options{
			WebhookURL:  cfg.WebhookURL,
			MaxAttempts: cfg.NotifyAttempts,
			Delay:       config.Seconds(cfg.NotifyDelaySec),
		}, logger),
	}
	hub := enrich.NewClient(enrich.Options{
		HubURL:   cfg.ExtractorURL,
		APIKey:   cfg.ExtractorAPIKey,
		MaxChars: cfg.ExtractorMaxChars,
		Timeout:  config.Seconds(cfg.ExtractorTimeout),
	}, logger)
	if hub.Enabled() {
		triageOpts.Enricher = hub
	}

	genOpts := querygen.Options{
		Cache:    sess.Files.Cache,
		Headings: triageHeadings(sess.Files),
	}
	if mem != nil {
		triageOpts.Memory = mem
		genOpts.Memory = mem
	}

	sensor, err := safety.NewSensor(cfg.SafetySensor)
	if err != nil {
		return pipeline.RunOptions{}, cleanup, err
	}
	shutdowner := safety.NewCommandShutdowner(cfg.ShutdownCommand)
	monitor := safety.NewMonitor(safety.Options{
		Sensor:      sensor,
		Threshold:   cfg.SafetyThreshold,
		Consecutive: cfg.SafetyConsecutive,
		Closer:      sess,
		Shutdowner:  shutdowner,
	}, logger)

	academic := []pipeline.Searcher{
		{Source: sources.NewArxiv(), Limit: cfg.ScholarLimit, Delay: config.Seconds(cfg.ScholarDelaySec)},
	}
	grey := []pipeline.Searcher{
		{Source: sources.NewDuckDuckGo(), Limit: cfg.WebLimit, Delay: config.Seconds(cfg.WebDelaySec)},
	}
	if cfg.GoogleAPIKey != "" && cfg.GoogleCX != "" {
		google, err := sources.NewGoogleCSE(ctx, cfg.GoogleAPIKey, cfg.GoogleCX)
		if err != nil {
			logger.Warn("google search disabled", zap.Error(err))
		} else {
			grey = append(grey, pipeline.Searcher{Source: google, Limit: cfg.GoogleLimit, Delay: config.Seconds(cfg.WebDelaySec)})
		}
	}

	return pipeline.RunOptions{
		Session:    sess,
		Triage:     triage.New(sess, triageOpts),
		Queries:    querygen.New(brainstorm, genOpts, logger),
		Safety:     monitor,
		Academic:   academic,
		GreyLit:    grey,
		Shutdowner: shutdowner,
	}, cleanup, nil
}

func openMemory(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger, closers *[]func()) (*memory.Memory, error) {
	vectors, err := memory.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, vectors.Close)

	embedder, err := memory.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	return memory.New(vectors, embedder, memory.Options{RunID: runID}, logger), nil
}

// triageHeadings lists bouncer rejections and final rejections, oldest first,
// as brainstorm context.
func triageHeadings(files *store.Files) querygen.HeadingSource {
	return func() ([]string, error) {
		triaged, err := files.Triage.Headings(0)
		if err != nil {
			return nil, err
		}
		rejected, err := files.Rejected.Headings(0)
		if err != nil {
			return nil, err
		}
		return append(triaged, rejected...), nil
	}
}
