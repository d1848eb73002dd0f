package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/doc-harvester/internal/delta"
)

// newIndexCmd creates the 'index' subcommand, a diagnostic over the records directory.
func newIndexCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Report how many documents the delta index already knows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			index, err := delta.Load(cfg.Storage.RecordsDir, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d known documents\n", cfg.Storage.RecordsDir, index.Len())
			return nil
		},
	}
}
