package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CTAG07/Stitch/pkg/config"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app carries the state shared by every subcommand once the config is loaded.
type app struct {
	configPath string
	logLevel   string
	variants   []string

	cfg    *config.Config
	logger *slog.Logger
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// load reads the config file and builds the logger. Flags win over the file
// and the environment.
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Level())
	a.logger.Debug("Configuration loaded", "path", a.configPath, "variants", len(cfg.Variants))
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stitch",
		Short: "Assemble a packaged asset file from a template and fragment files",
		Long: `stitch replaces the placeholder tokens of a template with the contents of
the fragment files listed in its manifest, and writes the result as one file.

Each variant in the config file pairs a template, a manifest and an output
path. Commands operate on every variant unless --variant is given. build
assembles every selected variant before writing any output, so a missing
fragment or template leaves all outputs as they were. Outputs are then
replaced one at a time.

Running two builds against the same output path at once is not supported.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "path to the config file (.json, .yaml or .yml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newBuildCmd(a),
		newCheckCmd(a),
		newLintCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
		newInitCmd(a),
	)
	return root
}

func addVariantFlag(cmd *cobra.Command, a *app) {
	cmd.Flags().StringSliceVar(&a.variants, "variant", nil, "variant to operate on (repeatable; default all)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
