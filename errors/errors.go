// Package errors provides error handling for validus.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// It also defines the engine's run-failure taxonomy. Every fatal path in
// a validation run is classified with exactly one of three markers:
//
//   - ErrConfig: the run was misconfigured (unknown excluded split,
//     malformed custom rule expression, bad schema version constraint)
//   - ErrDetection: the anomaly-detection collaborator failed
//   - ErrIO: reading inputs or writing the validation output failed
//
// Callers use the markers to distinguish "validation ran and found
// anomalies" (a successful run) from "validation could not run".
//
// Usage:
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Classify a run failure
//	if !bundle.HasSplit(name) {
//	    return errors.Configf("excluded split %q not in statistics bundle", name)
//	}
//
//	// Check classification
//	if errors.IsConfig(err) {
//	    // reject the run's configuration
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// Combination and marking
var (
	Join          = crdb.Join
	CombineErrors = crdb.CombineErrors
	Mark          = crdb.Mark
)

// Run-failure taxonomy. Errors carry a marker via errors.Mark and are
// classified with the Is* helpers below.
var (
	// ErrConfig indicates the validation run was misconfigured
	ErrConfig = New("configuration error")

	// ErrDetection indicates the anomaly-detection collaborator failed
	ErrDetection = New("detection error")

	// ErrIO indicates reading an input or writing the output failed
	ErrIO = New("i/o error")
)

// Config creates a configuration error.
func Config(msg string) error {
	return crdb.Mark(crdb.NewWithDepth(1, msg), ErrConfig)
}

// Configf creates a configuration error with a formatted message.
func Configf(format string, args ...interface{}) error {
	return crdb.Mark(crdb.NewWithDepthf(1, format, args...), ErrConfig)
}

// WrapConfig wraps an error as a configuration error with context.
func WrapConfig(err error, msg string) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.WrapWithDepth(1, err, msg), ErrConfig)
}

// WrapConfigf wraps an error as a configuration error with formatted context.
func WrapConfigf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrConfig)
}

// Detection wraps a collaborator failure as a detection error with context.
func Detection(err error, msg string) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.WrapWithDepth(1, err, msg), ErrDetection)
}

// Detectionf wraps a collaborator failure as a detection error with a
// formatted message.
func Detectionf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrDetection)
}

// IO wraps a storage failure as an i/o error with context.
func IO(err error, msg string) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.WrapWithDepth(1, err, msg), ErrIO)
}

// IOf wraps a storage failure as an i/o error with a formatted message.
func IOf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrIO)
}

// IsConfig checks if an error is classified as a configuration error.
func IsConfig(err error) bool { return err != nil && Is(err, ErrConfig) }

// IsDetection checks if an error is classified as a detection error.
func IsDetection(err error) bool { return err != nil && Is(err, ErrDetection) }

// IsIO checks if an error is classified as an i/o error.
func IsIO(err error) bool { return err != nil && Is(err, ErrIO) }
