// Package detector defines the anomaly-detection collaborator boundary:
// the engine delegates schema-conformance checking to a Detector and
// never computes statistics itself. Basic is the built-in reference
// implementation; heavier statistical detectors plug in behind the same
// interface.
package detector

import (
	"context"

	"github.com/teranos/validus/anomalies"
	"github.com/teranos/validus/schema"
	"github.com/teranos/validus/stats"
)

// Detector produces a base anomaly report for one split by checking its
// statistics against the declared schema. Implementations must be safe
// for concurrent use: the engine validates splits in parallel.
type Detector interface {
	Validate(ctx context.Context, split *stats.SplitStatistics, sc *schema.Schema) (*anomalies.Report, error)
}
