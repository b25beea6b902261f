// Package schema models the declared feature constraints a dataset is
// validated against: feature types, string domains, presence rules and
// value-count bounds. Schemas are read-only inputs owned by an upstream
// curator.
package schema

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/stats"
)

// Schema declares the expected shape of a dataset.
type Schema struct {
	// Version is the schema's semantic version, checked against the
	// engine's configured constraint before any split is validated.
	Version string `json:"version,omitempty"`

	// Features maps feature path to its declared constraints.
	Features map[string]*Feature `json:"features"`
}

// Feature declares constraints for one feature path.
type Feature struct {
	// Type is the expected statistics type for the feature.
	Type stats.FeatureType `json:"type"`

	// Domain lists the allowed string values. Empty means unconstrained.
	Domain []string `json:"domain,omitempty"`

	// Presence declares how often the feature must appear.
	Presence *Presence `json:"presence,omitempty"`

	// ValueCount bounds the number of values per example.
	ValueCount *ValueCount `json:"value_count,omitempty"`
}

// Presence declares required feature presence across examples.
type Presence struct {
	// MinFraction is the minimum fraction of examples the feature must
	// appear in, between 0 and 1.
	MinFraction float64 `json:"min_fraction,omitempty"`

	// MinCount is the minimum number of examples the feature must
	// appear in.
	MinCount int64 `json:"min_count,omitempty"`
}

// ValueCount bounds the per-example value count of a feature.
type ValueCount struct {
	Min int64 `json:"min,omitempty"`
	Max int64 `json:"max,omitempty"`
}

// FeaturePaths returns the schema's feature paths in sorted order.
func (s *Schema) FeaturePaths() []string {
	paths := make([]string, 0, len(s.Features))
	for p := range s.Features {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// InDomain reports whether value is allowed by the feature's domain.
// An empty domain allows everything.
func (f *Feature) InDomain(value string) bool {
	if len(f.Domain) == 0 {
		return true
	}
	for _, v := range f.Domain {
		if v == value {
			return true
		}
	}
	return false
}

// CheckVersion verifies the schema's version against a semver constraint
// (e.g. "^1.0"). An empty constraint accepts any schema; an empty schema
// version with a non-empty constraint is rejected.
func (s *Schema) CheckVersion(constraint string) error {
	if constraint == "" {
		return nil
	}
	if s.Version == "" {
		return errors.Configf("schema version constraint %q set but schema declares no version", constraint)
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.WrapConfig(err, "parsing schema version constraint")
	}
	v, err := semver.NewVersion(s.Version)
	if err != nil {
		return errors.WrapConfig(err, "parsing schema version")
	}
	if !c.Check(v) {
		return errors.Configf("schema version %s does not satisfy constraint %q", s.Version, constraint)
	}
	return nil
}

// Load reads a schema from a JSON file.
func Load(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(err, "reading schema")
	}

	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.IO(err, "decoding schema")
	}
	return &s, nil
}

// Write encodes a schema to a JSON file. Curators and tests use this;
// the validation engine itself never writes schemas.
func Write(path string, s *Schema) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.IO(err, "encoding schema")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.IO(err, "writing schema")
	}
	return nil
}
