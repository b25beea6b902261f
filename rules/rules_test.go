package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/stats"
)

func ruleSet(featurePath, expression string) *RuleSet {
	return &RuleSet{
		FeatureValidations: []FeatureValidation{{
			FeaturePath: featurePath,
			Validations: []Validation{{
				Expression:  expression,
				Severity:    "ERROR",
				Description: "Feature does not have enough values.",
			}},
		}},
	}
}

func stringFeatureCtx(minNumValues int64, numExamples int64) stats.AccessorContext {
	return stats.AccessorContext{
		Split: &stats.SplitStatistics{NumExamples: numExamples},
		Feature: &stats.FeatureStatistics{
			Type: stats.TypeString,
			StringStats: &stats.StringStatistics{
				CommonStats: stats.CommonStatistics{MinNumValues: minNumValues},
			},
		},
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `feature_validations:
  - feature_path: company
    validations:
      - expression: "feature.string_stats.common_stats.min_num_values < 5"
        severity: ERROR
        description: "Feature does not have enough values."
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rs.FeatureValidations, 1)
	assert.Equal(t, "company", rs.FeatureValidations[0].FeaturePath)
	require.Len(t, rs.FeatureValidations[0].Validations, 1)
	assert.Equal(t, "ERROR", rs.FeatureValidations[0].Validations[0].Severity)
}

func TestLoadMissingIsIOError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
}

func TestCompileNilIsNil(t *testing.T) {
	compiled, err := Compile(nil)
	require.NoError(t, err)
	assert.Nil(t, compiled)
	assert.Equal(t, 0, compiled.Len())
	assert.Nil(t, compiled.Rules())
}

func TestCompileEmptyIsNotNil(t *testing.T) {
	compiled, err := Compile(&RuleSet{})
	require.NoError(t, err)
	require.NotNil(t, compiled)
	assert.Equal(t, 0, compiled.Len())
}

func TestCompileValidRule(t *testing.T) {
	compiled, err := Compile(ruleSet("company", "feature.string_stats.common_stats.min_num_values < 5"))
	require.NoError(t, err)
	require.Equal(t, 1, compiled.Len())

	rule := compiled.Rules()[0]
	assert.Equal(t, "company", rule.FeaturePath)
	assert.Equal(t, anomalies.SeverityError, rule.Severity)
	assert.Equal(t, "Feature does not have enough values.", rule.Description)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		rs   *RuleSet
	}{
		{name: "missing feature path", rs: ruleSet("", "dataset.num_examples < 5")},
		{name: "unknown accessor", rs: ruleSet("company", "feature.bogus.stat < 5")},
		{name: "malformed clause", rs: ruleSet("company", "feature.string_stats.unique <")},
		{name: "unknown operator", rs: ruleSet("company", "feature.string_stats.unique <> 5")},
		{name: "non-numeric operand", rs: ruleSet("company", "feature.string_stats.unique < five")},
		{name: "empty expression", rs: ruleSet("company", "   ")},
		{
			name: "bad severity",
			rs: &RuleSet{FeatureValidations: []FeatureValidation{{
				FeaturePath: "company",
				Validations: []Validation{{Expression: "dataset.num_examples < 5", Severity: "FATAL", Description: "d"}},
			}}},
		},
		{
			name: "missing description",
			rs: &RuleSet{FeatureValidations: []FeatureValidation{{
				FeaturePath: "company",
				Validations: []Validation{{Expression: "dataset.num_examples < 5", Severity: "ERROR"}},
			}}},
		},
		{
			name: "no validations",
			rs:   &RuleSet{FeatureValidations: []FeatureValidation{{FeaturePath: "company"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.rs)
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err), "want ConfigError, got %v", err)
		})
	}
}

func TestEvaluateTriggers(t *testing.T) {
	compiled, err := Compile(ruleSet("company", "feature.string_stats.common_stats.min_num_values < 5"))
	require.NoError(t, err)
	rule := compiled.Rules()[0]

	triggered, resolved := rule.Evaluate(stringFeatureCtx(1, 100))
	assert.True(t, triggered)
	assert.True(t, resolved)

	triggered, resolved = rule.Evaluate(stringFeatureCtx(9, 100))
	assert.False(t, triggered)
	assert.True(t, resolved)
}

func TestEvaluateConjunction(t *testing.T) {
	expr := "feature.string_stats.common_stats.min_num_values < 5 && dataset.num_examples >= 100"
	compiled, err := Compile(ruleSet("company", expr))
	require.NoError(t, err)
	rule := compiled.Rules()[0]

	triggered, _ := rule.Evaluate(stringFeatureCtx(1, 100))
	assert.True(t, triggered)

	// Second conjunct false
	triggered, _ = rule.Evaluate(stringFeatureCtx(1, 99))
	assert.False(t, triggered)
}

func TestEvaluateUnresolvableDoesNotTrigger(t *testing.T) {
	compiled, err := Compile(ruleSet("trip_miles", "feature.string_stats.unique < 5"))
	require.NoError(t, err)
	rule := compiled.Rules()[0]

	// Numeric feature has no string statistics
	ctx := stats.AccessorContext{
		Split:   &stats.SplitStatistics{NumExamples: 10},
		Feature: &stats.FeatureStatistics{Type: stats.TypeFloat, NumStats: &stats.NumericStatistics{}},
	}
	triggered, resolved := rule.Evaluate(ctx)
	assert.False(t, triggered)
	assert.False(t, resolved)
}

func TestCompileErrorMentionsRulePosition(t *testing.T) {
	rs := &RuleSet{FeatureValidations: []FeatureValidation{
		{
			FeaturePath: "company",
			Validations: []Validation{{Expression: "dataset.num_examples < 5", Severity: "ERROR", Description: "d"}},
		},
		{
			FeaturePath: "tips",
			Validations: []Validation{{Expression: "broken", Severity: "ERROR", Description: "d"}},
		},
	}}
	_, err := Compile(rs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature_validations[1].validations[0]")
}
