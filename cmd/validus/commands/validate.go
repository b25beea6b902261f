package commands

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/validus/artifact"
	"github.com/teranos/validus/config"
	"github.com/teranos/validus/detector"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/fetch"
	"github.com/teranos/validus/ledger"
	"github.com/teranos/validus/rules"
	"github.com/teranos/validus/schema"
	"github.com/teranos/validus/stats"
	"github.com/teranos/validus/validator"
)

var validateFlags struct {
	stats          string
	schema         string
	rules          string
	output         string
	excludedSplits []string
	span           int64
	workers        int
	minExamples    int64
	constraint     string
	strict         bool
	noLedger       bool
}

// ValidateCmd runs one validation pass over a statistics bundle
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run one validation pass over a statistics bundle",
	Long: `Validate each split of a statistics bundle against a schema.

Inputs can be local paths or remote sources (https, s3, gcs, archives).
One anomaly report is written per retained split; the command prints a
per-split blessing summary and any generated alerts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		applyConfigDefaults(cmd, cfg)

		summary, err := runValidation(cmd.Context(), cfg)
		if err != nil {
			pterm.Error.Printf("Validation failed: %v\n", err)
			return err
		}

		printSummary(summary)

		if validateFlags.strict && !summary.blessed() {
			return errors.New("validation finished with anomalies")
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	f := ValidateCmd.Flags()
	f.StringVar(&validateFlags.stats, "stats", "", "Statistics bundle root (local path or remote source)")
	f.StringVar(&validateFlags.schema, "schema", "", "Schema file (local path or remote source)")
	f.StringVar(&validateFlags.rules, "rules", "", "Custom validation rule set (YAML)")
	f.StringVar(&validateFlags.output, "output", "", "Output root for per-split anomaly reports")
	f.StringSliceVar(&validateFlags.excludedSplits, "exclude-split", nil, "Split to skip (repeatable)")
	f.Int64Var(&validateFlags.span, "span", 0, "Span the bundle covers")
	f.IntVar(&validateFlags.workers, "workers", 0, "Per-split parallelism (default from config)")
	f.Int64Var(&validateFlags.minExamples, "min-examples", 0, "Dataset-level example floor (default from config)")
	f.StringVar(&validateFlags.constraint, "schema-constraint", "", "Semver range the schema version must satisfy")
	f.BoolVar(&validateFlags.strict, "strict", false, "Exit non-zero when any split is not blessed")
	f.BoolVar(&validateFlags.noLedger, "no-ledger", false, "Skip recording the run in the ledger")

	ValidateCmd.MarkFlagRequired("stats")
	ValidateCmd.MarkFlagRequired("schema")
	ValidateCmd.MarkFlagRequired("output")
}

// applyConfigDefaults fills unset flags from the loaded configuration
func applyConfigDefaults(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("exclude-split") {
		validateFlags.excludedSplits = cfg.Validation.ExcludedSplits
	}
	if !cmd.Flags().Changed("rules") {
		validateFlags.rules = cfg.Validation.RulesPath
	}
	if !cmd.Flags().Changed("workers") {
		validateFlags.workers = cfg.GetWorkers()
	}
	if !cmd.Flags().Changed("min-examples") {
		validateFlags.minExamples = cfg.Validation.MinDatasetExamples
	}
	if !cmd.Flags().Changed("schema-constraint") {
		validateFlags.constraint = cfg.Validation.SchemaVersionConstraint
	}
}

// runSummary is what one validation pass reports back to the CLI
type runSummary struct {
	runID     string
	span      int64
	splits    []string
	blessings map[string]string
	alerts    []validator.Alert
	duration  time.Duration
}

func (s *runSummary) blessed() bool {
	for _, token := range s.blessings {
		b, ok := validator.ParseBlessing(token)
		if !ok || b != validator.Blessed {
			return false
		}
	}
	return len(s.blessings) > 0
}

// runValidation materializes inputs, runs the executor and records the
// run in the ledger. Shared between validate and watch.
func runValidation(ctx context.Context, cfg *config.Config) (*runSummary, error) {
	start := time.Now()
	runID := uuid.NewString()

	statsSrc, err := fetch.Resolve(ctx, validateFlags.stats, fetch.Options{CacheDir: cfg.Fetch.CacheDir})
	if err != nil {
		return nil, err
	}
	defer statsSrc.Cleanup()

	schemaSrc, err := fetch.Resolve(ctx, validateFlags.schema, fetch.Options{CacheDir: cfg.Fetch.CacheDir})
	if err != nil {
		return nil, err
	}
	defer schemaSrc.Cleanup()

	sc, err := schema.Load(schemaPath(schemaSrc))
	if err != nil {
		return nil, err
	}

	var ruleSet *rules.RuleSet
	if validateFlags.rules != "" {
		ruleSet, err = rules.Load(validateFlags.rules)
		if err != nil {
			return nil, err
		}
	}

	splits, err := discoverSplits(statsSrc.LocalPath)
	if err != nil {
		return nil, err
	}
	encoded, err := artifact.EncodeSplitNames(splits)
	if err != nil {
		return nil, err
	}

	bundle := stats.NewBundle(&artifact.Artifact{
		URI:        statsSrc.LocalPath,
		SplitNames: encoded,
		Span:       validateFlags.span,
	})
	output := &artifact.Artifact{URI: validateFlags.output}

	executor := validator.NewExecutor(
		detector.NewBasic(detector.Options{MinExamples: validateFlags.minExamples}),
		validator.Options{
			Workers:                 validateFlags.workers,
			SchemaVersionConstraint: validateFlags.constraint,
		},
	)

	result, runErr := executor.Run(ctx, &validator.Request{
		Statistics:     bundle,
		Schema:         sc,
		RuleSet:        ruleSet,
		Output:         output,
		ExcludedSplits: validateFlags.excludedSplits,
	})

	summary := &runSummary{
		runID:    runID,
		span:     validateFlags.span,
		duration: time.Since(start),
	}
	if runErr == nil {
		retained, _ := artifact.DecodeSplitNames(output.SplitNames)
		summary.splits = retained
		if prop, ok := output.Property(validator.PropertyBlessedKey); ok {
			summary.blessings, _ = prop.(map[string]string)
		}
		if v, ok := result.ExecutionProperty(validator.AlertsPropertyKey); ok {
			summary.alerts, _ = v.([]validator.Alert)
		}
	}

	if !validateFlags.noLedger {
		if err := recordRun(cfg, summary, runErr); err != nil {
			// History is best effort; the validation outcome stands
			pterm.Warning.Printf("Failed to record run in ledger: %v\n", err)
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	return summary, nil
}

// schemaPath follows directory sources to the schema file inside.
// Remote archives extract to a directory; a bare file stays a file.
func schemaPath(src *fetch.Source) string {
	info, err := os.Stat(src.LocalPath)
	if err != nil || !info.IsDir() {
		return src.LocalPath
	}
	return filepath.Join(src.LocalPath, filepath.Base(validateFlags.schema))
}

// discoverSplits lists the Split-* directories under the bundle root,
// sorted for a stable run order.
func discoverSplits(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.IOf(err, "listing statistics bundle %s", root)
	}

	var splits []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), stats.SplitDirPrefix) {
			splits = append(splits, strings.TrimPrefix(entry.Name(), stats.SplitDirPrefix))
		}
	}
	if len(splits) == 0 {
		return nil, errors.Configf("no %s* directories found under %s", stats.SplitDirPrefix, root)
	}
	sort.Strings(splits)
	return splits, nil
}

func recordRun(cfg *config.Config, summary *runSummary, runErr error) error {
	store, err := ledger.Open(cfg.GetLedgerPath())
	if err != nil {
		return err
	}
	defer store.Close()

	run := &ledger.Run{
		ID:          summary.runID,
		Span:        summary.span,
		Splits:      summary.splits,
		Blessings:   summary.blessings,
		AlertCount:  len(summary.alerts),
		Status:      ledger.StatusSucceeded,
		StartedAt:   time.Now().Add(-summary.duration),
		CompletedAt: time.Now(),
	}
	if run.Splits == nil {
		run.Splits = []string{}
	}
	if runErr != nil {
		run.Status = ledger.StatusFailed
		run.Error = runErr.Error()
	}
	return store.RecordRun(run)
}

func printSummary(summary *runSummary) {
	pterm.DefaultHeader.WithFullWidth().Printf("Validation Summary - span %d", summary.span)
	pterm.Println()

	rows := pterm.TableData{{"Split", "Blessing"}}
	for _, split := range summary.splits {
		rows = append(rows, []string{split, summary.blessings[split]})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Println()

	if len(summary.alerts) == 0 {
		pterm.Success.Printf("All splits clean (%d validated in %s)\n",
			len(summary.splits), summary.duration.Round(time.Millisecond))
		return
	}

	pterm.Warning.Printf("%d alert(s) generated:\n", len(summary.alerts))
	for _, alert := range summary.alerts {
		pterm.Printf("  [%s] %s\n", alert.Name, alert.Body)
	}
}
