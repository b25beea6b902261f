package validator

import "github.com/teranos/validus/errors"

// ResolveSplits returns the retained split list: the bundle's splits
// minus the excluded set, preserving the bundle's ordering.
//
// An excluded name that does not exist in the bundle is a configuration
// error. Silently ignoring it was the alternative; failing loudly was
// chosen because a stale exclusion list usually means the caller is
// validating the wrong bundle.
func ResolveSplits(bundleSplits, excluded []string) ([]string, error) {
	inBundle := make(map[string]bool, len(bundleSplits))
	for _, s := range bundleSplits {
		inBundle[s] = true
	}

	skip := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		if !inBundle[e] {
			return nil, errors.Configf("excluded split %q not present in statistics bundle", e)
		}
		skip[e] = true
	}

	retained := make([]string, 0, len(bundleSplits))
	for _, s := range bundleSplits {
		if !skip[s] {
			retained = append(retained, s)
		}
	}
	return retained, nil
}
