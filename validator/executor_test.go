package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/artifact"
	"github.com/teranos/validus/detector"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/rules"
	"github.com/teranos/validus/schema"
	"github.com/teranos/validus/stats"
)

// fixtureSplit builds statistics that conform to fixtureSchema exactly.
func fixtureSplit(numExamples int64) *stats.SplitStatistics {
	return &stats.SplitStatistics{
		NumExamples: numExamples,
		Features: map[string]*stats.FeatureStatistics{
			"company": {
				Type: stats.TypeString,
				StringStats: &stats.StringStatistics{
					CommonStats: stats.CommonStatistics{
						NumNonMissing: numExamples,
						MinNumValues:  1,
						MaxNumValues:  1,
						AvgNumValues:  1,
						TotNumValues:  numExamples,
					},
					Unique:    2,
					TopValues: []stats.ValueFrequency{{Value: "acme", Frequency: numExamples}},
				},
			},
		},
	}
}

func fixtureSchema() *schema.Schema {
	return &schema.Schema{
		Version: "1.0.0",
		Features: map[string]*schema.Feature{
			"company": {
				Type:     stats.TypeString,
				Domain:   []string{"acme", "globex"},
				Presence: &schema.Presence{MinFraction: 1.0},
			},
		},
	}
}

// fixtureBundle writes per-split statistics to disk and returns the bundle.
func fixtureBundle(t *testing.T, span int64, splits map[string]*stats.SplitStatistics, order []string) *stats.Bundle {
	t.Helper()
	root := t.TempDir()
	for name, s := range splits {
		require.NoError(t, stats.WriteSplit(root, name, s))
	}
	encoded, err := artifact.EncodeSplitNames(order)
	require.NoError(t, err)
	return stats.NewBundle(&artifact.Artifact{URI: root, SplitNames: encoded, Span: span})
}

func undervaluedCompanyRules() *rules.RuleSet {
	return &rules.RuleSet{
		FeatureValidations: []rules.FeatureValidation{{
			FeaturePath: "company",
			Validations: []rules.Validation{{
				Expression:  "feature.string_stats.common_stats.min_num_values < 5",
				Severity:    "ERROR",
				Description: "Feature does not have enough values.",
			}},
		}},
	}
}

func runExecutor(t *testing.T, req *Request, opts Options) (*artifact.ExecutionResult, error) {
	t.Helper()
	e := NewExecutor(detector.NewBasic(detector.Options{MinExamples: 10}), opts)
	return e.Run(context.Background(), req)
}

func readSplitReport(t *testing.T, root, split string) *anomalies.Report {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(root, stats.SplitDir(split), AnomaliesFileName))
	require.NoError(t, err)
	report, err := anomalies.Unmarshal(raw)
	require.NoError(t, err)
	return report
}

// Scenario A: conforming bundle, exclude test, no custom rules.
func TestRunAllClean(t *testing.T) {
	bundle := fixtureBundle(t, 11, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(1000),
		"eval":  fixtureSplit(500),
		"test":  fixtureSplit(500),
	}, []string{"train", "eval", "test"})

	out := &artifact.Artifact{URI: t.TempDir()}
	result, err := runExecutor(t, &Request{
		Statistics:     bundle,
		Schema:         fixtureSchema(),
		Output:         out,
		ExcludedSplits: []string{"test"},
	}, Options{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, `["train","eval"]`, out.SplitNames)
	assert.Equal(t, int64(11), out.Span)

	prop, ok := out.Property(PropertyBlessedKey)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"train": "BLESSED", "eval": "BLESSED"}, prop)

	assert.True(t, readSplitReport(t, out.URI, "train").Empty())
	assert.True(t, readSplitReport(t, out.URI, "eval").Empty())

	// Excluded split left no trace
	_, err = os.Stat(filepath.Join(out.URI, stats.SplitDir("test")))
	assert.True(t, os.IsNotExist(err))

	// All clean: alert property absent, not empty
	_, ok = result.ExecutionProperty(AlertsPropertyKey)
	assert.False(t, ok)
}

// Scenario B: custom rule flags company in both retained splits.
func TestRunCustomValidation(t *testing.T) {
	bundle := fixtureBundle(t, 11, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(1000),
		"eval":  fixtureSplit(500),
		"test":  fixtureSplit(500),
	}, []string{"train", "eval", "test"})

	out := &artifact.Artifact{URI: t.TempDir()}
	result, err := runExecutor(t, &Request{
		Statistics:     bundle,
		Schema:         fixtureSchema(),
		RuleSet:        undervaluedCompanyRules(),
		Output:         out,
		ExcludedSplits: []string{"test"},
	}, Options{Workers: 2})
	require.NoError(t, err)

	prop, ok := out.Property(PropertyBlessedKey)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"train": "NOT_BLESSED", "eval": "NOT_BLESSED"}, prop)

	for _, split := range []string{"train", "eval"} {
		report := readSplitReport(t, out.URI, split)
		require.Contains(t, report.AnomalyInfo, "company", "split %s", split)
		got := report.AnomalyInfo["company"]
		assert.Equal(t, anomalies.SeverityError, got.Severity)
		assert.Equal(t, "Feature does not have enough values.", got.ShortDescription)
		assert.Equal(t, anomalies.ReasonCustomValidation, got.Reason)
	}

	v, ok := result.ExecutionProperty(AlertsPropertyKey)
	require.True(t, ok)
	alerts, ok := v.([]Alert)
	require.True(t, ok)
	require.Len(t, alerts, 2)
	// Ordered by split-input order regardless of worker completion order
	assert.Equal(t,
		"Feature(s) company contain(s) anomalies for split train, span 11. See Anomalies artifact for more details.",
		alerts[0].Body)
	assert.Equal(t,
		"Feature(s) company contain(s) anomalies for split eval, span 11. See Anomalies artifact for more details.",
		alerts[1].Body)
}

// Scenario C: dataset-level anomaly on train only.
func TestRunDatasetAnomalySingleSplit(t *testing.T) {
	bundle := fixtureBundle(t, 7, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(3), // below the detector's MinExamples of 10
		"eval":  fixtureSplit(500),
	}, []string{"train", "eval"})

	out := &artifact.Artifact{URI: t.TempDir()}
	result, err := runExecutor(t, &Request{
		Statistics: bundle,
		Schema:     fixtureSchema(),
		Output:     out,
	}, Options{Workers: 2})
	require.NoError(t, err)

	prop, _ := out.Property(PropertyBlessedKey)
	assert.Equal(t, map[string]string{"train": "NOT_BLESSED", "eval": "BLESSED"}, prop)

	v, ok := result.ExecutionProperty(AlertsPropertyKey)
	require.True(t, ok)
	alerts := v.([]Alert)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNameDatasetAnomalies, alerts[0].Name)
	assert.Equal(t, "Low num examples in dataset. in split train, span 7.", alerts[0].Body)
}

func TestRunIdempotent(t *testing.T) {
	bundle := fixtureBundle(t, 11, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(1000),
		"eval":  fixtureSplit(500),
	}, []string{"train", "eval"})

	outRoot := t.TempDir()
	run := func() (map[string][]byte, map[string]string) {
		out := &artifact.Artifact{URI: outRoot}
		_, err := runExecutor(t, &Request{
			Statistics: bundle,
			Schema:     fixtureSchema(),
			RuleSet:    undervaluedCompanyRules(),
			Output:     out,
		}, Options{Workers: 4})
		require.NoError(t, err)

		files := make(map[string][]byte)
		for _, split := range []string{"train", "eval"} {
			raw, err := os.ReadFile(filepath.Join(outRoot, stats.SplitDir(split), AnomaliesFileName))
			require.NoError(t, err)
			files[split] = raw
		}
		prop, _ := out.Property(PropertyBlessedKey)
		return files, prop.(map[string]string)
	}

	firstFiles, firstBlessing := run()
	secondFiles, secondBlessing := run()

	assert.Equal(t, firstFiles, secondFiles, "re-runs must produce byte-identical reports")
	assert.Equal(t, firstBlessing, secondBlessing)
}

func TestRunUnknownExcludedSplit(t *testing.T) {
	bundle := fixtureBundle(t, 1, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(100),
	}, []string{"train"})

	_, err := runExecutor(t, &Request{
		Statistics:     bundle,
		Schema:         fixtureSchema(),
		Output:         &artifact.Artifact{URI: t.TempDir()},
		ExcludedSplits: []string{"holdout"},
	}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestRunMalformedRuleAbortsBeforeOutput(t *testing.T) {
	bundle := fixtureBundle(t, 1, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(100),
	}, []string{"train"})

	outRoot := t.TempDir()
	_, err := runExecutor(t, &Request{
		Statistics: bundle,
		Schema:     fixtureSchema(),
		RuleSet: &rules.RuleSet{FeatureValidations: []rules.FeatureValidation{{
			FeaturePath: "company",
			Validations: []rules.Validation{{Expression: "garbage", Severity: "ERROR", Description: "d"}},
		}}},
		Output: &artifact.Artifact{URI: outRoot},
	}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))

	entries, err := os.ReadDir(outRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "no output may exist after a config failure")
}

func TestRunMissingSplitStatisticsIsIOError(t *testing.T) {
	// Descriptor names a split that has no blob on disk
	root := t.TempDir()
	require.NoError(t, stats.WriteSplit(root, "train", fixtureSplit(100)))
	encoded, err := artifact.EncodeSplitNames([]string{"train", "eval"})
	require.NoError(t, err)
	bundle := stats.NewBundle(&artifact.Artifact{URI: root, SplitNames: encoded, Span: 1})

	_, err = runExecutor(t, &Request{
		Statistics: bundle,
		Schema:     fixtureSchema(),
		Output:     &artifact.Artifact{URI: t.TempDir()},
	}, Options{Workers: 2})
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
}

type failingDetector struct{}

func (f *failingDetector) Validate(ctx context.Context, split *stats.SplitStatistics, sc *schema.Schema) (*anomalies.Report, error) {
	if split.NumExamples == 0 {
		return nil, fmt.Errorf("no statistics")
	}
	return anomalies.NewReport(), nil
}

func TestRunDetectorFailureAbortsRun(t *testing.T) {
	bundle := fixtureBundle(t, 1, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(100),
		"eval":  fixtureSplit(0), // triggers the failing detector
	}, []string{"train", "eval"})

	outRoot := t.TempDir()
	e := NewExecutor(&failingDetector{}, Options{Workers: 2})
	_, err := e.Run(context.Background(), &Request{
		Statistics: bundle,
		Schema:     fixtureSchema(),
		Output:     &artifact.Artifact{URI: outRoot},
	})
	require.Error(t, err)
	assert.True(t, errors.IsDetection(err))

	// Fail-fast: nothing committed
	for _, split := range []string{"train", "eval"} {
		_, statErr := os.Stat(filepath.Join(outRoot, stats.SplitDir(split), AnomaliesFileName))
		assert.True(t, os.IsNotExist(statErr), "split %s must not be committed", split)
	}
}

func TestRunSchemaVersionConstraint(t *testing.T) {
	bundle := fixtureBundle(t, 1, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(100),
	}, []string{"train"})

	req := &Request{
		Statistics: bundle,
		Schema:     fixtureSchema(), // version 1.0.0
		Output:     &artifact.Artifact{URI: t.TempDir()},
	}

	_, err := runExecutor(t, req, Options{SchemaVersionConstraint: "^1.0"})
	require.NoError(t, err)

	req.Output = &artifact.Artifact{URI: t.TempDir()}
	_, err = runExecutor(t, req, Options{SchemaVersionConstraint: "^2.0"})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestRunRequestValidation(t *testing.T) {
	bundle := fixtureBundle(t, 1, map[string]*stats.SplitStatistics{
		"train": fixtureSplit(100),
	}, []string{"train"})
	out := &artifact.Artifact{URI: t.TempDir()}

	tests := []struct {
		name string
		req  *Request
	}{
		{name: "nil request", req: nil},
		{name: "missing statistics", req: &Request{Schema: fixtureSchema(), Output: out}},
		{name: "missing schema", req: &Request{Statistics: bundle, Output: out}},
		{name: "missing output", req: &Request{Statistics: bundle, Schema: fixtureSchema()}},
		{name: "empty output URI", req: &Request{Statistics: bundle, Schema: fixtureSchema(), Output: &artifact.Artifact{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runExecutor(t, tt.req, Options{})
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err))
		})
	}
}

// Ordering holds under heavy parallelism with many splits.
func TestRunManySplitsOrderedMerge(t *testing.T) {
	splits := make(map[string]*stats.SplitStatistics)
	var order []string
	for i := 0; i < 16; i++ {
		name := fmt.Sprintf("shard%02d", i)
		splits[name] = fixtureSplit(3) // every split gets a dataset anomaly
		order = append(order, name)
	}
	bundle := fixtureBundle(t, 9, splits, order)

	out := &artifact.Artifact{URI: t.TempDir()}
	result, err := runExecutor(t, &Request{
		Statistics: bundle,
		Schema:     fixtureSchema(),
		Output:     out,
	}, Options{Workers: 8})
	require.NoError(t, err)

	v, ok := result.ExecutionProperty(AlertsPropertyKey)
	require.True(t, ok)
	alerts := v.([]Alert)
	require.Len(t, alerts, 16)
	for i, alert := range alerts {
		assert.Equal(t,
			fmt.Sprintf("Low num examples in dataset. in split shard%02d, span 9.", i),
			alert.Body)
	}
}
