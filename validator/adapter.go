package validator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/detector"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/logger"
	"github.com/teranos/validus/rules"
	"github.com/teranos/validus/schema"
	"github.com/teranos/validus/stats"
)

// Adapter produces one split's unified anomaly report: the schema
// conformance check from the detector collaborator, then custom rule
// evaluation layered on top. Safe for concurrent use across splits.
type Adapter struct {
	detector detector.Detector
	rules    *rules.CompiledRuleSet
	log      *zap.SugaredLogger
}

// NewAdapter wires a detector and an optional compiled rule set. A nil
// rule set skips custom validation entirely.
func NewAdapter(d detector.Detector, ruleSet *rules.CompiledRuleSet, log *zap.SugaredLogger) *Adapter {
	if log == nil {
		log = logger.ComponentLogger("validator.adapter")
	}
	return &Adapter{detector: d, rules: ruleSet, log: log}
}

// Detect runs both anomaly sources for one split. Detector failures are
// detection errors and abort the run.
//
// Merge policy: each feature path carries a single descriptor. Custom
// validation runs second, so a rule that fires on a path the schema
// check already flagged replaces that descriptor (last-writer-wins).
func (a *Adapter) Detect(ctx context.Context, splitName string, split *stats.SplitStatistics, sc *schema.Schema) (*anomalies.Report, error) {
	report, err := a.detector.Validate(ctx, split, sc)
	if err != nil {
		return nil, errors.Detectionf(err, "schema conformance check for split %s", splitName)
	}
	if report == nil {
		report = anomalies.NewReport()
	}

	for _, rule := range a.rules.Rules() {
		ruleCtx := stats.AccessorContext{
			Split:   split,
			Feature: split.Features[rule.FeaturePath],
		}

		triggered, resolved := rule.Evaluate(ruleCtx)
		if !resolved {
			a.log.Debugw("custom rule not resolvable for split",
				logger.FieldSplit, splitName,
				logger.FieldFeature, rule.FeaturePath,
				"expression", rule.Expression)
			continue
		}
		if !triggered {
			continue
		}

		description := fmt.Sprintf(
			"Custom validation triggered anomaly. Query: %s Test dataset: default slice",
			rule.Expression)
		report.Put(rule.FeaturePath, &anomalies.FeatureAnomaly{
			Severity:         rule.Severity,
			ShortDescription: rule.Description,
			Description:      description,
			Reason:           anomalies.ReasonCustomValidation,
		})

		a.log.Debugw("custom rule triggered",
			logger.FieldSplit, splitName,
			logger.FieldFeature, rule.FeaturePath,
			logger.FieldSeverity, string(rule.Severity))
	}

	return report, nil
}
