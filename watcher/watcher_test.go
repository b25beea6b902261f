package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerOnBundleWrite(t *testing.T) {
	root := t.TempDir()
	splitDir := filepath.Join(root, "Split-train")
	require.NoError(t, os.MkdirAll(splitDir, 0o755))

	triggered := make(chan struct{}, 8)
	bw, err := New(root, func(ctx context.Context) error {
		triggered <- struct{}{}
		return nil
	}, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bw.Run(ctx)

	// Let the watch loop start before generating events
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(splitDir, "FeatureStats.json"), []byte("{}"), 0o644))

	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a triggered run after a bundle write")
	}
}

func TestDebounceCollapsesBurst(t *testing.T) {
	root := t.TempDir()

	var count atomic.Int32
	bw, err := New(root, func(ctx context.Context) error {
		count.Add(1)
		return nil
	}, Options{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bw.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// A multi-file bundle write lands as a burst of events
	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "file")
		require.NoError(t, os.WriteFile(name, []byte{byte(i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load(), "burst of writes must collapse into one run")
}

func TestStagingFilesIgnored(t *testing.T) {
	root := t.TempDir()

	var count atomic.Int32
	bw, err := New(root, func(ctx context.Context) error {
		count.Add(1)
		return nil
	}, Options{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bw.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "SchemaDiff.json.staging"), []byte("{}"), 0o644))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, int32(0), count.Load(), "staged output files must not retrigger validation")
}

func TestRateLimitSkipsRuns(t *testing.T) {
	root := t.TempDir()

	var count atomic.Int32
	bw, err := New(root, func(ctx context.Context) error {
		count.Add(1)
		return nil
	}, Options{MaxRunsPerMinute: 1})
	require.NoError(t, err)

	ctx := context.Background()
	bw.fire(ctx)
	bw.fire(ctx)
	bw.fire(ctx)

	assert.Equal(t, int32(1), count.Load(), "limiter must hold runs to the configured rate")
}

func TestFireAfterCancelIsNoop(t *testing.T) {
	root := t.TempDir()

	var count atomic.Int32
	bw, err := New(root, func(ctx context.Context) error {
		count.Add(1)
		return nil
	}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bw.fire(ctx)

	assert.Equal(t, int32(0), count.Load())
}

func TestRunStopsOnCancel(t *testing.T) {
	root := t.TempDir()

	bw, err := New(root, func(ctx context.Context) error { return nil }, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bw.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), func(ctx context.Context) error { return nil }, Options{})
	require.Error(t, err)
}
