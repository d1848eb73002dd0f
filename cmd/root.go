// Package cmd defines and implements the CLI commands for the doc-harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/app"
	"github.com/JakeFAU/doc-harvester/internal/config"
	"github.com/JakeFAU/doc-harvester/internal/harvest"
	"github.com/JakeFAU/doc-harvester/internal/logging"
)

// Runner is the slice of the application the harvest command drives.
// It is an interface so tests can inject a fake.
type Runner interface {
	RunID() string
	Run(ctx context.Context) (harvest.Summary, error)
	Close()
}

// newRunner is the application factory, replaceable in tests.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newLogger is replaceable in tests to silence output.
var newLogger = logging.New

type rootOptions struct {
	configFile string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "doc-harvester",
		Short: "A polite crawler that harvests PDF documents and their bibliographic metadata.",
		Long: `doc-harvester crawls configured library sites, downloads linked PDF
documents while honoring robots.txt and a request delay, and writes one
metadata record per new or changed document.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newHarvestCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	return cmd
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
