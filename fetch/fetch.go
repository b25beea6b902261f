// Package fetch materializes validation inputs from local or remote
// sources. Statistics bundles, schemas and rule sets can live next to
// the binary or behind any source go-getter understands (http, s3,
// gcs, git, archives with auto-extraction).
package fetch

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/logger"
)

// Source is a materialized input: a local directory holding the
// fetched (or already-local) content.
type Source struct {
	// LocalPath is where the content lives on disk.
	LocalPath string

	// OriginalInput is the input the path was resolved from.
	OriginalInput string

	// Fetched reports whether the content was pulled from a remote
	// source into a temporary directory.
	Fetched bool

	cleanup func()
}

// Cleanup removes any temporary resources created for this source.
// Safe to call multiple times.
func (s *Source) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Options tunes input materialization.
type Options struct {
	// CacheDir is where fetched content lands. Empty means a
	// per-fetch temporary directory removed on Cleanup.
	CacheDir string
}

// Resolve materializes an input to a local directory.
// Supports:
//   - Local paths: /path/to/bundle, ./relative/path, ~/home/path
//   - Remote URLs: https, s3, gcs, git (auto-detected by go-getter)
//   - Archives: https://example.com/bundle.tar.gz (auto-extracted)
//
// Returns a Source that must be cleaned up when done.
func Resolve(ctx context.Context, input string, opts Options) (*Source, error) {
	log := logger.ComponentLogger("fetch")

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.WrapConfigf(err, "detecting source type of %s", input)
	}

	log.Debugw("source detected",
		"input", input,
		"detected", detected)

	parsedURL, err := url.Parse(detected)
	if err != nil {
		return nil, errors.WrapConfigf(err, "parsing detected URL %s", detected)
	}

	// file:// URLs and bare paths resolve locally without fetching
	if parsedURL.Scheme == "file" || parsedURL.Scheme == "" {
		return resolveLocal(input, parsedURL, pwd)
	}

	return fetchRemote(ctx, input, detected, opts, log)
}

func resolveLocal(input string, parsedURL *url.URL, pwd string) (*Source, error) {
	localPath := input
	if parsedURL.Scheme == "file" {
		localPath = parsedURL.Path
	}

	if strings.HasPrefix(localPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.WrapConfig(err, "expanding home directory")
		}
		localPath = filepath.Join(home, localPath[2:])
	}

	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(pwd, localPath)
	}

	if _, err := os.Stat(localPath); err != nil {
		return nil, errors.IOf(err, "input %s does not exist", localPath)
	}

	return &Source{
		LocalPath:     localPath,
		OriginalInput: input,
		Fetched:       false,
		cleanup:       func() {},
	}, nil
}

func fetchRemote(ctx context.Context, input, detected string, opts Options, log *zap.SugaredLogger) (*Source, error) {
	name := extractSourceName(input)

	dst := opts.CacheDir
	removeOnCleanup := false
	if dst == "" {
		tempDir, err := os.MkdirTemp("", "validus-fetch-"+name+"-*")
		if err != nil {
			return nil, errors.IO(err, "creating temp directory")
		}
		dst = tempDir
		removeOnCleanup = true
	} else {
		dst = filepath.Join(dst, name)
	}

	log.Infow("fetching input",
		"input", input,
		"destination", dst)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Mode:    getter.ClientModeDir,
		Getters: getter.Getters,
	}

	if err := client.Get(); err != nil {
		if removeOnCleanup {
			os.RemoveAll(dst)
		}
		return nil, errors.IOf(err, "fetching %s", input)
	}

	log.Infow("fetch completed", "destination", dst)

	cleanup := func() {}
	if removeOnCleanup {
		cleanup = func() {
			log.Debugw("cleaning up fetched input", "path", dst)
			os.RemoveAll(dst)
		}
	}

	return &Source{
		LocalPath:     dst,
		OriginalInput: input,
		Fetched:       true,
		cleanup:       cleanup,
	}, nil
}

// IsRemote checks if the input points at a remote source rather than a
// local path.
func IsRemote(input string) bool {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(input, pwd, getter.Detectors)
	if err != nil {
		return false
	}

	parsedURL, err := url.Parse(detected)
	if err != nil {
		return false
	}

	return parsedURL.Scheme != "" && parsedURL.Scheme != "file"
}

// extractSourceName derives a directory-safe name from a URL or path.
func extractSourceName(input string) string {
	input = strings.TrimSuffix(input, "/")

	if strings.Contains(input, "/") {
		parts := strings.Split(input, "/")
		for i := len(parts) - 1; i >= 0; i-- {
			if parts[i] != "" {
				return sanitizeSourceName(parts[i])
			}
		}
	}

	return sanitizeSourceName(input)
}

func sanitizeSourceName(name string) string {
	replacer := strings.NewReplacer(
		":", "-",
		"@", "-",
		" ", "-",
		"?", "-",
		"&", "-",
	)
	name = replacer.Replace(name)

	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "input"
	}

	return name
}
