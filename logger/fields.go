package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across validus.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRunID     = "run_id"
	FieldComponent = "component"

	// Validation domain
	FieldSplit    = "split"
	FieldSpan     = "span"
	FieldFeature  = "feature"
	FieldBlessing = "blessing"
	FieldSeverity = "severity"
	FieldReason   = "reason"

	// Operations
	FieldOperation = "operation"
	FieldStage     = "stage"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError     = "error"
	FieldErrorType = "error_type"

	// Counts and sizes
	FieldCount      = "count"
	FieldSplitCount = "split_count"
	FieldRuleCount  = "rule_count"

	// Files and paths
	FieldFile = "file"
	FieldURI  = "uri"
	FieldPath = "path"
)

// Context keys for propagating logging context
type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	splitKey     contextKey = "logger_split"
	componentKey contextKey = "logger_component"
)

// WithRunID adds a validation run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithSplit adds a split name to the context for logging
func WithSplit(ctx context.Context, split string) context.Context {
	return context.WithValue(ctx, splitKey, split)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if split, ok := ctx.Value(splitKey).(string); ok && split != "" {
		fields = append(fields, FieldSplit, split)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
// Use this to get a logger that automatically includes run_id, split, etc.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Executor struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewExecutor() *Executor {
//	    return &Executor{
//	        logger: logger.ComponentLogger("validator.executor"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
// Use for sub-operations that need extra context fields.
//
// Example:
//
//	splitLogger := logger.ChildLogger(baseLogger, logger.FieldSplit, split)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
