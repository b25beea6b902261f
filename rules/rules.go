// Package rules implements custom validation rule sets: user-declared
// boolean expressions over per-split statistics, each bound to a feature
// path with a severity and a human description.
//
// Rule sets are declared in YAML:
//
//	feature_validations:
//	  - feature_path: company
//	    validations:
//	      - expression: "feature.string_stats.common_stats.min_num_values < 5"
//	        severity: ERROR
//	        description: "Feature does not have enough values."
//
// An expression is one or more comparisons joined by "&&". Each
// comparison is "<accessor> <op> <number>" where accessor is a statistic
// path resolvable by the stats package (feature.* against the rule's
// feature, dataset.* against the split) and op is one of
// < <= > >= == !=. An expression that evaluates true flags the feature.
//
// A nil rule set and an empty rule set are distinct: nil skips custom
// validation entirely, empty runs it and finds nothing.
package rules

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/stats"
)

// RuleSet is the declared form of a custom validation rule set.
type RuleSet struct {
	FeatureValidations []FeatureValidation `yaml:"feature_validations"`
}

// FeatureValidation binds one feature path to its validations.
type FeatureValidation struct {
	FeaturePath string       `yaml:"feature_path"`
	Validations []Validation `yaml:"validations"`
}

// Validation is one declared rule.
type Validation struct {
	Expression  string `yaml:"expression"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
}

// Load reads a rule set from a YAML file.
func Load(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(err, "reading rule set")
	}

	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, errors.IO(err, "decoding rule set")
	}
	return &rs, nil
}

// CompiledRuleSet is a rule set whose expressions have been parsed and
// whose accessors have been checked. Compilation happens once per run,
// before any split is processed, so a malformed rule aborts the run with
// no output written.
type CompiledRuleSet struct {
	rules []CompiledRule
}

// CompiledRule is one executable rule.
type CompiledRule struct {
	FeaturePath string
	Severity    anomalies.Severity
	Description string
	Expression  string

	comparisons []comparison
}

type comparison struct {
	accessor string
	op       string
	operand  float64
}

// Compile validates and compiles a declared rule set. Any malformed
// expression, unknown accessor, or bad severity is a configuration error.
func Compile(rs *RuleSet) (*CompiledRuleSet, error) {
	if rs == nil {
		return nil, nil
	}

	compiled := &CompiledRuleSet{}
	for i, fv := range rs.FeatureValidations {
		if strings.TrimSpace(fv.FeaturePath) == "" {
			return nil, errors.Configf("feature_validations[%d].feature_path is required", i)
		}
		if len(fv.Validations) == 0 {
			return nil, errors.Configf("feature_validations[%d] (%s) has no validations", i, fv.FeaturePath)
		}

		for j, v := range fv.Validations {
			severity, err := parseSeverity(v.Severity)
			if err != nil {
				return nil, errors.Wrapf(err, "feature_validations[%d].validations[%d]", i, j)
			}
			comparisons, err := parseExpression(v.Expression)
			if err != nil {
				return nil, errors.Wrapf(err, "feature_validations[%d].validations[%d]", i, j)
			}
			if strings.TrimSpace(v.Description) == "" {
				return nil, errors.Configf("feature_validations[%d].validations[%d].description is required", i, j)
			}

			compiled.rules = append(compiled.rules, CompiledRule{
				FeaturePath: fv.FeaturePath,
				Severity:    severity,
				Description: v.Description,
				Expression:  v.Expression,
				comparisons: comparisons,
			})
		}
	}
	return compiled, nil
}

// Rules returns the compiled rules in declaration order.
func (c *CompiledRuleSet) Rules() []CompiledRule {
	if c == nil {
		return nil
	}
	return c.rules
}

// Len returns the number of compiled rules.
func (c *CompiledRuleSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// Evaluate runs the rule against one split. The first return is whether
// the rule triggered; the second is whether every accessor resolved. A
// rule whose accessors do not apply to the feature (e.g. a string
// statistic on a numeric feature, or a feature absent from the split)
// does not trigger.
func (r *CompiledRule) Evaluate(ctx stats.AccessorContext) (triggered, resolved bool) {
	for _, cmp := range r.comparisons {
		value, ok := stats.Resolve(cmp.accessor, ctx)
		if !ok {
			return false, false
		}
		if !compare(value, cmp.op, cmp.operand) {
			return false, true
		}
	}
	return true, true
}

func parseSeverity(s string) (anomalies.Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WARNING":
		return anomalies.SeverityWarning, nil
	case "ERROR":
		return anomalies.SeverityError, nil
	case "":
		return "", errors.Config("severity is required (WARNING or ERROR)")
	default:
		return "", errors.Configf("severity must be WARNING or ERROR, got %q", s)
	}
}

var comparisonOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

func parseExpression(expr string) ([]comparison, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, errors.Config("expression is required")
	}

	var comparisons []comparison
	for _, clause := range strings.Split(expr, "&&") {
		tokens := strings.Fields(clause)
		if len(tokens) != 3 {
			return nil, errors.Configf("malformed expression clause %q: want <accessor> <op> <number>", strings.TrimSpace(clause))
		}

		accessor, op, literal := tokens[0], tokens[1], tokens[2]
		if !stats.ValidAccessor(accessor) {
			return nil, errors.Configf("unknown statistic accessor %q", accessor)
		}
		if !comparisonOps[op] {
			return nil, errors.Configf("unknown comparison operator %q", op)
		}
		operand, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, errors.Configf("operand %q is not a number", literal)
		}

		comparisons = append(comparisons, comparison{accessor: accessor, op: op, operand: operand})
	}
	return comparisons, nil
}

func compare(left float64, op string, right float64) bool {
	switch op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "==":
		return left == right
	case "!=":
		return left != right
	default:
		return false
	}
}
