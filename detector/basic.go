package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/schema"
	"github.com/teranos/validus/stats"
)

// Options tunes the Basic detector.
type Options struct {
	// MinExamples is the split-level example count below which a
	// dataset-level low-num-examples anomaly is raised. Zero disables
	// the check.
	MinExamples int64
}

// Basic is the reference conformance detector. It checks feature
// presence, type, string domains and value-count bounds against the
// schema, plus the split-level example count. It performs no statistical
// drift or distribution analysis.
type Basic struct {
	opts Options
}

// NewBasic creates a Basic detector.
func NewBasic(opts Options) *Basic {
	return &Basic{opts: opts}
}

// Validate checks one split's statistics against the schema. Features
// are checked in sorted path order so reports are deterministic.
func (b *Basic) Validate(ctx context.Context, split *stats.SplitStatistics, sc *schema.Schema) (*anomalies.Report, error) {
	if split == nil {
		return nil, errors.New("split statistics are required")
	}
	if sc == nil {
		return nil, errors.New("schema is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := anomalies.NewReport()

	for _, path := range sc.FeaturePaths() {
		declared := sc.Features[path]
		observed := split.Features[path]

		if finding := checkFeature(path, declared, observed); finding != nil {
			report.Put(path, finding)
		}
	}

	if b.opts.MinExamples > 0 && split.NumExamples < b.opts.MinExamples {
		report.AddDatasetAnomaly(anomalies.DatasetAnomaly{
			Severity:    anomalies.SeverityError,
			Description: "Low num examples in dataset.",
			Reason:      anomalies.ReasonDatasetLowNumExamples,
		})
	}

	return report, nil
}

// checkFeature returns the first conformance violation for a feature, or
// nil when it conforms. One descriptor per path: the most severe
// structural problem (absence, then type) masks the finer-grained ones.
func checkFeature(path string, declared *schema.Feature, observed *stats.FeatureStatistics) *anomalies.FeatureAnomaly {
	if observed == nil {
		if declared.Presence == nil || (declared.Presence.MinFraction == 0 && declared.Presence.MinCount == 0) {
			// Optional feature, absence is fine
			return nil
		}
		return &anomalies.FeatureAnomaly{
			Severity:         anomalies.SeverityError,
			ShortDescription: "Column dropped",
			Description:      fmt.Sprintf("Required feature %s is missing from the statistics.", path),
			Reason:           anomalies.ReasonSchemaMissingFeature,
		}
	}

	if observed.Type != declared.Type {
		return &anomalies.FeatureAnomaly{
			Severity:         anomalies.SeverityError,
			ShortDescription: "Unexpected data type",
			Description:      fmt.Sprintf("Feature %s has type %s, schema expects %s.", path, observed.Type, declared.Type),
			Reason:           anomalies.ReasonSchemaTypeMismatch,
		}
	}

	if finding := checkPresence(path, declared.Presence, observed); finding != nil {
		return finding
	}
	if finding := checkValueCount(path, declared.ValueCount, observed); finding != nil {
		return finding
	}
	return checkDomain(path, declared, observed)
}

func checkPresence(path string, presence *schema.Presence, observed *stats.FeatureStatistics) *anomalies.FeatureAnomaly {
	if presence == nil {
		return nil
	}
	cs := observed.CommonStats()
	if cs == nil {
		return nil
	}

	if presence.MinCount > 0 && cs.NumNonMissing < presence.MinCount {
		return &anomalies.FeatureAnomaly{
			Severity:         anomalies.SeverityError,
			ShortDescription: "Feature missing from examples",
			Description: fmt.Sprintf("Feature %s is present in %d examples, schema requires at least %d.",
				path, cs.NumNonMissing, presence.MinCount),
			Reason: anomalies.ReasonSchemaPresenceViolation,
		}
	}

	if presence.MinFraction > 0 {
		fraction, ok := observed.PresenceFraction()
		if ok && fraction < presence.MinFraction {
			return &anomalies.FeatureAnomaly{
				Severity:         anomalies.SeverityError,
				ShortDescription: "Feature missing from examples",
				Description: fmt.Sprintf("Feature %s is present in fraction %.4f of examples, schema requires at least %.4f.",
					path, fraction, presence.MinFraction),
				Reason: anomalies.ReasonSchemaPresenceViolation,
			}
		}
	}
	return nil
}

func checkValueCount(path string, bounds *schema.ValueCount, observed *stats.FeatureStatistics) *anomalies.FeatureAnomaly {
	if bounds == nil {
		return nil
	}
	cs := observed.CommonStats()
	if cs == nil {
		return nil
	}

	if bounds.Min > 0 && cs.MinNumValues < bounds.Min {
		return &anomalies.FeatureAnomaly{
			Severity:         anomalies.SeverityError,
			ShortDescription: "Feature has too few values",
			Description: fmt.Sprintf("Feature %s has as few as %d values per example, schema requires at least %d.",
				path, cs.MinNumValues, bounds.Min),
			Reason: anomalies.ReasonSchemaValueCountBounds,
		}
	}
	if bounds.Max > 0 && cs.MaxNumValues > bounds.Max {
		return &anomalies.FeatureAnomaly{
			Severity:         anomalies.SeverityError,
			ShortDescription: "Feature has too many values",
			Description: fmt.Sprintf("Feature %s has as many as %d values per example, schema allows at most %d.",
				path, cs.MaxNumValues, bounds.Max),
			Reason: anomalies.ReasonSchemaValueCountBounds,
		}
	}
	return nil
}

func checkDomain(path string, declared *schema.Feature, observed *stats.FeatureStatistics) *anomalies.FeatureAnomaly {
	if len(declared.Domain) == 0 || observed.StringStats == nil {
		return nil
	}

	var unexpected []string
	for _, vf := range observed.StringStats.TopValues {
		if !declared.InDomain(vf.Value) {
			unexpected = append(unexpected, vf.Value)
		}
	}
	if len(unexpected) == 0 {
		return nil
	}

	return &anomalies.FeatureAnomaly{
		Severity:         anomalies.SeverityError,
		ShortDescription: "Unexpected string values",
		Description: fmt.Sprintf("Feature %s has value(s) %s not in the schema domain.",
			path, strings.Join(unexpected, ", ")),
		Reason: anomalies.ReasonSchemaDomainViolation,
	}
}
