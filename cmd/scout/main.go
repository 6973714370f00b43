// Package main provides the entry point for the research scout CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonathan/research-scout/internal/config"
	"github.com/jonathan/research-scout/internal/safety"
)

// exitEmergency is the process status after a thermal emergency shutdown.
const exitEmergency = 2

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	logger     *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scout",
		Short: "Research scout",
		Long: `Research scout searches academic and grey-literature sources, triages every new
hit through a lexical sieve and two classifier stages, notifies on relevant
discoveries and remembers every verdict so nothing is evaluated twice.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if a.logger != nil {
				return nil
			}
			zcfg := zap.NewProductionConfig()
			if a.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a JSON or YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRunCmd(a), newStatsCmd(a), newBackfillCmd(a))
	return root
}

// loadConfig layers the config file, explicitly set flags, the environment
// and the defaults, in that order of precedence.
func (a *app) loadConfig(apply func(*config.Config)) (config.Config, error) {
	var cfg config.Config
	if a.configPath != "" {
		loaded, err := config.LoadConfig(a.configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	if a.verbose {
		cfg.Verbose = true
	}
	if apply != nil {
		apply(&cfg)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(&app{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, safety.ErrEmergencyShutdown) {
			return exitEmergency
		}
		return 1
	}
	return 0
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
