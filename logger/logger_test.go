package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			err := Initialize(tt.jsonOutput)
			require.NoError(t, err)
			require.NotNil(t, Logger, "Initialize() did not set global Logger")
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Logger.Sync()
			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestNopLoggerBeforeInitialize(t *testing.T) {
	// Package-level helpers must be safe before Initialize is called
	Logger = zap.NewNop().Sugar()

	Info("safe")
	Infof("safe %d", 1)
	Infow("safe", FieldSplit, "train")
	Warn("safe")
	Debug("safe")
	Error("safe")
	Cleanup()
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{5, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "User", LevelName(VerbosityUser))
	assert.Equal(t, "Info (-v)", LevelName(VerbosityInfo))
	assert.Equal(t, "Debug (-vv)", LevelName(VerbosityDebug))
	assert.Equal(t, "Debug (-vv+)", LevelName(7))
}

func TestFieldsFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FieldsFromContext(ctx))

	ctx = WithRunID(ctx, "run-42")
	ctx = WithSplit(ctx, "train")
	ctx = WithComponent(ctx, "validator.executor")

	fields := FieldsFromContext(ctx)
	assert.Equal(t, []interface{}{
		FieldRunID, "run-42",
		FieldSplit, "train",
		FieldComponent, "validator.executor",
	}, fields)
}

func TestLoggerFromContext(t *testing.T) {
	require.NoError(t, Initialize(false))
	defer func() { Logger = zap.NewNop().Sugar() }()

	// Empty context returns the global logger unchanged
	assert.Same(t, Logger, LoggerFromContext(context.Background()))

	ctx := WithSplit(context.Background(), "eval")
	child := LoggerFromContext(ctx)
	assert.NotSame(t, Logger, child)
}

func TestComponentLogger(t *testing.T) {
	require.NoError(t, Initialize(false))
	defer func() { Logger = zap.NewNop().Sugar() }()

	named := ComponentLogger("validator.writer")
	require.NotNil(t, named)
	named.Debugw("component logger works", FieldSplit, "train")
}
