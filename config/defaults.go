package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Validation defaults
	v.SetDefault("validation.workers", 4)
	v.SetDefault("validation.min_dataset_examples", 0) // 0 disables the floor
	v.SetDefault("validation.excluded_splits", []string{})

	// Ledger defaults
	v.SetDefault("ledger.path", "validus.db")

	// Watcher defaults
	v.SetDefault("watcher.debounce_ms", 500)
	v.SetDefault("watcher.max_runs_per_minute", 12)

	// Fetch defaults
	v.SetDefault("fetch.timeout_seconds", 300)

	// Logging defaults
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.verbosity", 0)
}

// BindEnvVars explicitly binds frequently overridden settings to
// environment variables, so they work without a config file present.
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("ledger.path", "VALIDUS_LEDGER_PATH")
	v.BindEnv("validation.rules_path", "VALIDUS_VALIDATION_RULES_PATH")
	v.BindEnv("validation.workers", "VALIDUS_VALIDATION_WORKERS")
	v.BindEnv("logging.json", "VALIDUS_LOGGING_JSON")
	v.BindEnv("logging.verbosity", "VALIDUS_LOGGING_VERBOSITY")
}

// GetLedgerPath returns the configured ledger path with the fallback
// default applied.
func (c *Config) GetLedgerPath() string {
	if c.Ledger.Path == "" {
		return "validus.db"
	}
	return c.Ledger.Path
}

// GetWorkers returns the per-split worker count with the floor applied.
func (c *Config) GetWorkers() int {
	if c.Validation.Workers < 1 {
		return 1
	}
	return c.Validation.Workers
}
