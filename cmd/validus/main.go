package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/validus/cmd/validus/commands"
	"github.com/teranos/validus/config"
	"github.com/teranos/validus/logger"
)

var rootCmd = &cobra.Command{
	Use:   "validus",
	Short: "Validus - split-aware statistics validation and alerting",
	Long: `Validus - schema-driven validation of per-split dataset statistics.

Validus checks each split of a statistics bundle against a schema and an
optional custom rule set, writes one anomaly report per split, evaluates
a blessing verdict, and emits alert records for anything it finds.

Available commands:
  validate - Run one validation pass over a statistics bundle
  watch    - Continuously validate a bundle as it changes on disk
  runs     - Inspect recorded validation run history
  version  - Show version information

Examples:
  validus validate --stats ./stats --schema schema.json --output ./out
  validus validate --stats ./stats --schema schema.json --rules rules.yaml \
      --exclude-split test --output ./out
  validus watch --stats ./stats --schema schema.json --output ./out
  validus runs --limit 20`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("json-logs") {
			jsonLogs = cfg.Logging.JSON
		}
		if verbosity == 0 {
			verbosity = cfg.Logging.Verbosity
		}

		if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
