package config

import "github.com/teranos/validus/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Workers: 0 = use the floor of 1, negative = invalid
	if c.Validation.Workers < 0 {
		return errors.Configf("validation.workers must be >= 0, got %d", c.Validation.Workers)
	}

	// Dataset example floor: 0 = disabled, negative = invalid
	if c.Validation.MinDatasetExamples < 0 {
		return errors.Configf("validation.min_dataset_examples must be >= 0, got %d", c.Validation.MinDatasetExamples)
	}

	for i, split := range c.Validation.ExcludedSplits {
		if split == "" {
			return errors.Configf("validation.excluded_splits[%d] cannot be empty", i)
		}
	}

	// Watcher debounce: 0 = fire immediately, negative = invalid
	if c.Watcher.DebounceMs < 0 {
		return errors.Configf("watcher.debounce_ms must be >= 0, got %d", c.Watcher.DebounceMs)
	}
	if c.Watcher.MaxRunsPerMinute < 0 {
		return errors.Configf("watcher.max_runs_per_minute must be >= 0, got %d", c.Watcher.MaxRunsPerMinute)
	}

	if c.Fetch.TimeoutSeconds < 0 {
		return errors.Configf("fetch.timeout_seconds must be >= 0, got %d", c.Fetch.TimeoutSeconds)
	}

	if c.Logging.Verbosity < 0 || c.Logging.Verbosity > 2 {
		return errors.Configf("logging.verbosity must be 0, 1 or 2, got %d", c.Logging.Verbosity)
	}

	return nil
}
