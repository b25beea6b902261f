package config

// Config is the validus runtime configuration, assembled by Viper from
// defaults, config files and VALIDUS_-prefixed environment variables.
type Config struct {
	Validation ValidationConfig `mapstructure:"validation"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Watcher    WatcherConfig    `mapstructure:"watcher"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ValidationConfig tunes a validation run.
type ValidationConfig struct {
	// ExcludedSplits lists split names skipped during validation. Every
	// entry must exist in the statistics bundle being validated.
	ExcludedSplits []string `mapstructure:"excluded_splits"`

	// RulesPath points at a YAML custom validation rule set. Empty means
	// no custom validation.
	RulesPath string `mapstructure:"rules_path"`

	// Workers bounds per-split parallelism. 0 means 1.
	Workers int `mapstructure:"workers"`

	// MinDatasetExamples is the dataset-level example floor; splits with
	// fewer examples raise a dataset anomaly. 0 disables the check.
	MinDatasetExamples int64 `mapstructure:"min_dataset_examples"`

	// SchemaVersionConstraint pins accepted schema versions to a semver
	// range (e.g. "^1.0"). Empty accepts any schema.
	SchemaVersionConstraint string `mapstructure:"schema_version_constraint"`
}

// LedgerConfig locates the run-history database.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// WatcherConfig tunes continuous-validation mode.
type WatcherConfig struct {
	// DebounceMs is how long the watcher waits after the last filesystem
	// event before triggering a run.
	DebounceMs int `mapstructure:"debounce_ms"`

	// MaxRunsPerMinute rate limits triggered runs. 0 means unlimited.
	MaxRunsPerMinute int `mapstructure:"max_runs_per_minute"`
}

// FetchConfig tunes remote input materialization.
type FetchConfig struct {
	// CacheDir is where fetched bundles land. Empty means a per-fetch
	// temporary directory.
	CacheDir string `mapstructure:"cache_dir"`

	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	// JSON switches from console output to structured JSON lines.
	JSON bool `mapstructure:"json"`

	// Verbosity: 0 warnings and above, 1 info, 2 debug.
	Verbosity int `mapstructure:"verbosity"`
}
