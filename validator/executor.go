package validator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/artifact"
	"github.com/teranos/validus/detector"
	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/logger"
	"github.com/teranos/validus/rules"
	"github.com/teranos/validus/schema"
	"github.com/teranos/validus/stats"
)

// Request carries one validation run's inputs. All fields except RuleSet
// are required; a nil RuleSet skips custom validation (which is distinct
// from an empty rule set that runs it and finds nothing).
type Request struct {
	// Statistics is the per-split statistics bundle to validate.
	Statistics *stats.Bundle

	// Schema holds the declared feature constraints.
	Schema *schema.Schema

	// RuleSet is the optional custom validation rule set.
	RuleSet *rules.RuleSet

	// Output is the validation output descriptor; its URI is the root
	// the per-split reports are written under.
	Output *artifact.Artifact

	// ExcludedSplits lists bundle splits to skip. Every entry must
	// exist in the bundle.
	ExcludedSplits []string
}

// Options tunes the executor.
type Options struct {
	// Workers bounds per-split parallelism. Values below 1 mean 1.
	Workers int

	// SchemaVersionConstraint optionally pins the schema version to a
	// semver range (e.g. "^1.0"). Empty accepts any schema.
	SchemaVersionConstraint string
}

// Executor orchestrates one validation run: split resolution, per-split
// detection and alert formatting fanned out across workers, ordered
// merge, and output writing. It holds no state across runs.
type Executor struct {
	detector detector.Detector
	opts     Options
	writer   *Writer
	log      *zap.SugaredLogger
}

// NewExecutor creates an executor around a detector collaborator.
func NewExecutor(d detector.Detector, opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	log := logger.ComponentLogger("validator.executor")
	return &Executor{
		detector: d,
		opts:     opts,
		writer:   NewWriter(logger.ComponentLogger("validator.writer")),
		log:      log,
	}
}

// splitResult is one split's outcome, index-stamped so the merge can
// restore split-input ordering regardless of completion order.
type splitResult struct {
	index    int
	split    string
	report   *anomalies.Report
	blessing Blessing
	alerts   []Alert
}

// Run executes one validation pass to completion. It either returns a
// full, consistent execution result (including the all-clean case) or
// an error classified as ConfigError, DetectionError or IOError; no
// partial output is committed on failure.
func (e *Executor) Run(ctx context.Context, req *Request) (*artifact.ExecutionResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := e.log.With(logger.FieldRunID, runID)

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := req.Schema.CheckVersion(e.opts.SchemaVersionConstraint); err != nil {
		return nil, err
	}

	// Rule sets compile before any split is touched: a malformed rule
	// aborts the run with nothing written.
	compiled, err := rules.Compile(req.RuleSet)
	if err != nil {
		return nil, err
	}

	bundleSplits, err := req.Statistics.SplitNames()
	if err != nil {
		return nil, err
	}
	retained, err := ResolveSplits(bundleSplits, req.ExcludedSplits)
	if err != nil {
		return nil, err
	}

	span := req.Statistics.Span()
	log.Infow("validation run started",
		logger.FieldSpan, span,
		logger.FieldSplitCount, len(retained),
		logger.FieldRuleCount, compiled.Len(),
	)

	results, err := e.validateSplits(ctx, log, req, compiled, retained)
	if err != nil {
		return nil, err
	}

	// Ordered merge: results arrive index-stamped, assemble in
	// split-input order.
	reports := make(map[string]*anomalies.Report, len(retained))
	blessings := make(map[string]Blessing, len(retained))
	var alerts []Alert
	for _, res := range results {
		reports[res.split] = res.report
		blessings[res.split] = res.blessing
		alerts = append(alerts, res.alerts...)
		log.Infow("split validated",
			logger.FieldSplit, res.split,
			logger.FieldBlessing, res.blessing.String(),
			logger.FieldCount, len(res.report.AnomalyInfo)+len(res.report.DatasetAnomalies),
		)
	}

	result, err := e.writer.Write(req.Output, retained, span, reports, blessings, alerts)
	if err != nil {
		return nil, err
	}

	log.Infow("validation run finished",
		logger.FieldSpan, span,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		"alerts", len(alerts),
	)
	return result, nil
}

// validateSplits fans per-split work out to a bounded worker pool and
// returns results in split-input order. The first failure cancels the
// remaining work and aborts the run.
func (e *Executor) validateSplits(
	ctx context.Context,
	log *zap.SugaredLogger,
	req *Request,
	compiled *rules.CompiledRuleSet,
	retained []string,
) ([]splitResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adapter := NewAdapter(e.detector, compiled, log.Named("adapter"))
	span := req.Statistics.Span()

	type task struct {
		index int
		split string
	}
	tasks := make(chan task)
	results := make([]splitResult, len(retained))

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failErr  error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			failErr = err
			cancel()
		})
	}

	workers := e.opts.Workers
	if workers > len(retained) {
		workers = len(retained)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				res, err := e.validateOne(ctx, adapter, req, span, t.index, t.split)
				if err != nil {
					fail(err)
					return
				}
				results[t.index] = res
			}
		}()
	}

dispatch:
	for i, split := range retained {
		select {
		case tasks <- task{index: i, split: split}:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(tasks)
	wg.Wait()

	if failErr != nil {
		return nil, failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "validation cancelled")
	}
	return results, nil
}

func (e *Executor) validateOne(
	ctx context.Context,
	adapter *Adapter,
	req *Request,
	span int64,
	index int,
	split string,
) (splitResult, error) {
	splitStats, err := req.Statistics.LoadSplit(split)
	if err != nil {
		return splitResult{}, err
	}

	report, err := adapter.Detect(ctx, split, splitStats, req.Schema)
	if err != nil {
		return splitResult{}, err
	}

	return splitResult{
		index:    index,
		split:    split,
		report:   report,
		blessing: EvaluateBlessing(report),
		alerts:   FormatAlerts(report, split, span),
	}, nil
}

func validateRequest(req *Request) error {
	switch {
	case req == nil:
		return errors.Config("validation request is required")
	case req.Statistics == nil:
		return errors.Config("statistics bundle is required")
	case req.Schema == nil:
		return errors.Config("schema is required")
	case req.Output == nil:
		return errors.Config("output artifact is required")
	case req.Output.URI == "":
		return errors.Config("output artifact URI is required")
	default:
		return nil
	}
}
