package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/validus/config"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/fetch"
	"github.com/teranos/validus/watcher"
)

// WatchCmd continuously validates a statistics bundle as it changes
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously validate a bundle as it changes on disk",
	Long: `Watch a local statistics bundle and rerun validation on change.

Filesystem events are debounced so a multi-file bundle refresh triggers
one run. Runs are rate limited per watcher.max_runs_per_minute. Each
run writes reports, evaluates blessings and records ledger history the
same way 'validate' does. Stops on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		applyConfigDefaults(cmd, cfg)

		if fetch.IsRemote(validateFlags.stats) {
			return errors.Config("watch requires a local statistics bundle")
		}

		trigger := func(ctx context.Context) error {
			summary, err := runValidation(ctx, cfg)
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		}

		bw, err := watcher.New(validateFlags.stats, trigger, watcher.Options{
			Debounce:         time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond,
			MaxRunsPerMinute: cfg.Watcher.MaxRunsPerMinute,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pterm.Info.Printf("Watching %s (debounce %dms)\n", validateFlags.stats, cfg.Watcher.DebounceMs)
		if err := bw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		pterm.Info.Println("Watcher stopped")
		return nil
	},
	SilenceUsage: true,
}

func init() {
	f := WatchCmd.Flags()
	f.StringVar(&validateFlags.stats, "stats", "", "Statistics bundle root (local path)")
	f.StringVar(&validateFlags.schema, "schema", "", "Schema file (local path or remote source)")
	f.StringVar(&validateFlags.rules, "rules", "", "Custom validation rule set (YAML)")
	f.StringVar(&validateFlags.output, "output", "", "Output root for per-split anomaly reports")
	f.StringSliceVar(&validateFlags.excludedSplits, "exclude-split", nil, "Split to skip (repeatable)")
	f.Int64Var(&validateFlags.span, "span", 0, "Span the bundle covers")
	f.IntVar(&validateFlags.workers, "workers", 0, "Per-split parallelism (default from config)")
	f.Int64Var(&validateFlags.minExamples, "min-examples", 0, "Dataset-level example floor (default from config)")
	f.StringVar(&validateFlags.constraint, "schema-constraint", "", "Semver range the schema version must satisfy")
	f.BoolVar(&validateFlags.noLedger, "no-ledger", false, "Skip recording runs in the ledger")

	WatchCmd.MarkFlagRequired("stats")
	WatchCmd.MarkFlagRequired("schema")
	WatchCmd.MarkFlagRequired("output")
}
