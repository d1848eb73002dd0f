package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/config"
	"github.com/JakeFAU/doc-harvester/internal/harvest"
	"github.com/JakeFAU/doc-harvester/internal/logging"
)

type harvestOptions struct {
	source  string
	maxDocs int
}

// newHarvestCmd creates the 'harvest' subcommand, which runs one bounded batch.
func newHarvestCmd(root *rootOptions) *cobra.Command {
	opts := &harvestOptions{}
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run one harvest over the configured sources",
		Long: `Crawls every configured source (or only --source), downloads up to
max_docs documents per source, and writes a metadata record for each
document whose content has not been harvested before.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "harvest only the named source")
	cmd.Flags().IntVar(&opts.maxDocs, "max-docs", 0, "override every source's document quota")
	return cmd
}

func runHarvest(cmd *cobra.Command, root *rootOptions, opts *harvestOptions) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if err := applyOverrides(&cfg, opts); err != nil {
		return err
	}

	logger, err := newLogger(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize harvester services: %w", err)
	}
	defer runner.Close()

	summary, err := runner.Run(ctx)
	printSummary(cmd.OutOrStdout(), summary)
	if err != nil {
		return fmt.Errorf("run harvest: %w", err)
	}
	logger.Info("Harvest command finished.", zap.String("run_id", runner.RunID()))
	return nil
}

func applyOverrides(cfg *config.Config, opts *harvestOptions) error {
	if opts.source != "" {
		src, ok := cfg.Source(opts.source)
		if !ok {
			return fmt.Errorf("unknown source %q", opts.source)
		}
		cfg.Sources = []config.SourceConfig{src}
	}
	if opts.maxDocs < 0 {
		return errors.New("--max-docs must be >= 0")
	}
	if opts.maxDocs > 0 {
		for i := range cfg.Sources {
			cfg.Sources[i].MaxDocs = opts.maxDocs
		}
	}
	return nil
}

func printSummary(w io.Writer, summary harvest.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tDOWNLOADED\tPROCESSED\tUNCHANGED\tNON-PDF\tFAILED\tDENIED")
	rows := append([]harvest.SourceSummary(nil), summary.Sources...)
	if len(rows) > 1 {
		rows = append(rows, summary.Totals())
	}
	for _, s := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Source, s.Downloaded, s.Processed, s.Unchanged, s.NonDocument, s.Failed, s.Denied)
	}
	_ = tw.Flush()
}
