// Package watcher triggers validation runs when a statistics bundle
// changes on disk. Filesystem events are debounced so a multi-file
// bundle write fires one run, and triggered runs are rate limited.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/logger"
	"github.com/teranos/validus/stats"
)

// TriggerFunc runs one validation pass. Errors are logged, not fatal;
// the watcher keeps running.
type TriggerFunc func(ctx context.Context) error

// Options tunes the bundle watcher.
type Options struct {
	// Debounce is how long to wait after the last event before
	// triggering. 0 means trigger immediately.
	Debounce time.Duration

	// MaxRunsPerMinute rate limits triggered runs. 0 means unlimited.
	MaxRunsPerMinute int
}

// BundleWatcher watches a statistics bundle root and its Split-*
// subdirectories for changes.
type BundleWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	trigger TriggerFunc
	opts    Options
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// New creates a watcher over the bundle root. The root and every
// existing split directory are watched; split directories created
// later are picked up as they appear.
func New(root string, trigger TriggerFunc, opts Options) (*BundleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.IO(err, "creating filesystem watcher")
	}

	if err := w.Add(root); err != nil {
		w.Close()
		return nil, errors.IOf(err, "watching bundle root %s", root)
	}

	bw := &BundleWatcher{
		root:    root,
		watcher: w,
		trigger: trigger,
		opts:    opts,
		log:     logger.ComponentLogger("watcher"),
	}
	if opts.MaxRunsPerMinute > 0 {
		bw.limiter = rate.NewLimiter(rate.Limit(float64(opts.MaxRunsPerMinute)/60.0), 1)
	}

	// Watch split directories that already exist
	entries, err := os.ReadDir(root)
	if err != nil {
		w.Close()
		return nil, errors.IOf(err, "listing bundle root %s", root)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), stats.SplitDirPrefix) {
			if err := w.Add(filepath.Join(root, entry.Name())); err != nil {
				bw.log.Warnw("failed to watch split directory",
					"dir", entry.Name(),
					"error", err)
			}
		}
	}

	return bw, nil
}

// Run watches until the context is cancelled.
func (bw *BundleWatcher) Run(ctx context.Context) error {
	defer bw.watcher.Close()
	bw.log.Infow("watching statistics bundle", "root", bw.root)

	for {
		select {
		case <-ctx.Done():
			bw.cancelPending()
			return ctx.Err()

		case event, ok := <-bw.watcher.Events:
			if !ok {
				return nil
			}
			bw.handleEvent(ctx, event)

		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return nil
			}
			bw.log.Warnw("watcher error", "error", err)
		}
	}
}

func (bw *BundleWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	// A new split directory appearing gets added to the watch set
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() &&
			strings.HasPrefix(filepath.Base(event.Name), stats.SplitDirPrefix) {
			if err := bw.watcher.Add(event.Name); err != nil {
				bw.log.Warnw("failed to watch new split directory",
					"dir", event.Name,
					"error", err)
			}
		}
	}

	// Staged output files from our own writer are not input changes
	if strings.HasSuffix(event.Name, ".staging") {
		return
	}

	bw.log.Debugw("bundle change detected",
		"file", event.Name,
		"op", event.Op.String())
	bw.scheduleTrigger(ctx)
}

// scheduleTrigger debounces rapid file changes before triggering
func (bw *BundleWatcher) scheduleTrigger(ctx context.Context) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.debounceTimer != nil {
		bw.debounceTimer.Stop()
	}

	bw.debounceTimer = time.AfterFunc(bw.opts.Debounce, func() {
		bw.fire(ctx)
	})
}

func (bw *BundleWatcher) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if bw.limiter != nil && !bw.limiter.Allow() {
		bw.log.Warnw("validation run skipped, rate limit reached",
			"max_runs_per_minute", bw.opts.MaxRunsPerMinute)
		return
	}

	start := time.Now()
	if err := bw.trigger(ctx); err != nil {
		bw.log.Errorw("triggered validation run failed",
			"error", err,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
		return
	}
	bw.log.Infow("triggered validation run finished",
		logger.FieldDurationMS, time.Since(start).Milliseconds())
}

func (bw *BundleWatcher) cancelPending() {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.debounceTimer != nil {
		bw.debounceTimer.Stop()
		bw.debounceTimer = nil
	}
}
