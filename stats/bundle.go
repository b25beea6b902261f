package stats

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/teranos/validus/artifact"
	"github.com/teranos/validus/errors"
)

const (
	// SplitDirPrefix is the per-split subdirectory naming scheme shared
	// by statistics bundles and validation outputs.
	SplitDirPrefix = "Split-"

	// StatsFileName is the statistics blob file name within a split
	// subdirectory.
	StatsFileName = "FeatureStats.json"
)

// SplitDir returns the per-split subdirectory name for a split.
func SplitDir(split string) string {
	return SplitDirPrefix + split
}

// Bundle is a read-only view over a statistics artifact: the split-name
// list and span from the descriptor plus per-split blobs on storage.
type Bundle struct {
	artifact *artifact.Artifact
}

// NewBundle wraps a statistics artifact descriptor.
func NewBundle(a *artifact.Artifact) *Bundle {
	return &Bundle{artifact: a}
}

// Artifact returns the underlying descriptor.
func (b *Bundle) Artifact() *artifact.Artifact {
	return b.artifact
}

// Span returns the bundle's dataset generation marker.
func (b *Bundle) Span() int64 {
	return b.artifact.Span
}

// SplitNames decodes the bundle's split-name list, preserving the
// producer's ordering.
func (b *Bundle) SplitNames() ([]string, error) {
	return artifact.DecodeSplitNames(b.artifact.SplitNames)
}

// HasSplit reports whether the bundle contains the named split.
func (b *Bundle) HasSplit(name string) (bool, error) {
	splits, err := b.SplitNames()
	if err != nil {
		return false, err
	}
	for _, s := range splits {
		if s == name {
			return true, nil
		}
	}
	return false, nil
}

// LoadSplit reads and decodes one split's statistics blob.
func (b *Bundle) LoadSplit(name string) (*SplitStatistics, error) {
	path := filepath.Join(b.artifact.URI, SplitDir(name), StatsFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOf(err, "reading statistics for split %s", name)
	}

	var split SplitStatistics
	if err := json.Unmarshal(raw, &split); err != nil {
		return nil, errors.IOf(err, "decoding statistics for split %s", name)
	}
	return &split, nil
}

// WriteSplit encodes and writes one split's statistics blob under root.
// Producers and tests use this; the validation engine itself never
// writes statistics.
func WriteSplit(root, name string, split *SplitStatistics) error {
	dir := filepath.Join(root, SplitDir(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IOf(err, "creating statistics directory for split %s", name)
	}

	raw, err := json.MarshalIndent(split, "", "  ")
	if err != nil {
		return errors.IOf(err, "encoding statistics for split %s", name)
	}
	if err := os.WriteFile(filepath.Join(dir, StatsFileName), raw, 0o644); err != nil {
		return errors.IOf(err, "writing statistics for split %s", name)
	}
	return nil
}
