// Package anomalies models the per-split anomaly report: feature-level
// findings keyed by feature path plus dataset-level findings that apply
// to the whole split. Reports are immutable once a split's detection
// finishes, and serialize to a canonical byte-stable form.
package anomalies

import (
	"bytes"
	"encoding/json"

	"github.com/teranos/validus/errors"
)

// Severity grades a finding.
type Severity string

const (
	SeverityUnknown Severity = "UNKNOWN"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Reason codes classify what produced a finding.
const (
	ReasonSchemaMissingFeature    = "SCHEMA_MISSING_FEATURE"
	ReasonSchemaTypeMismatch      = "SCHEMA_TYPE_MISMATCH"
	ReasonSchemaDomainViolation   = "SCHEMA_DOMAIN_VIOLATION"
	ReasonSchemaPresenceViolation = "SCHEMA_PRESENCE_VIOLATION"
	ReasonSchemaValueCountBounds  = "SCHEMA_VALUE_COUNT_BOUNDS"
	ReasonCustomValidation        = "CUSTOM_VALIDATION"
	ReasonDatasetLowNumExamples   = "DATASET_LOW_NUM_EXAMPLES"
)

// FeatureAnomaly is a finding scoped to one feature path. Each feature
// path carries at most one descriptor per report; when the schema
// detector and a custom rule both flag a path, the custom finding
// replaces the schema one (last-writer-wins, see Report.Put).
type FeatureAnomaly struct {
	Severity         Severity    `json:"severity"`
	ShortDescription string      `json:"short_description"`
	Description      string      `json:"description"`
	Reason           string      `json:"reason"`
	DiffRegion       *DiffRegion `json:"diff_region,omitempty"`
}

// DiffRegion points at the statistics slice that triggered a finding.
type DiffRegion struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// DatasetAnomaly is a finding that applies to the whole split.
type DatasetAnomaly struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Reason      string   `json:"reason"`
}

// Report is one split's unified anomaly report. The zero value is a
// clean report.
type Report struct {
	// AnomalyInfo maps feature path to that path's single descriptor.
	AnomalyInfo map[string]*FeatureAnomaly `json:"anomaly_info,omitempty"`

	// DatasetAnomalies lists split-wide findings in detection order.
	DatasetAnomalies []DatasetAnomaly `json:"dataset_anomalies,omitempty"`
}

// NewReport returns an empty (clean) report.
func NewReport() *Report {
	return &Report{}
}

// Empty reports whether the report contains no findings. An empty report
// means the split is clean.
func (r *Report) Empty() bool {
	return r == nil || (len(r.AnomalyInfo) == 0 && len(r.DatasetAnomalies) == 0)
}

// Put records a feature finding, replacing any existing descriptor for
// the same path. Replacement is unconditional: the engine's merge policy
// is last-writer-wins, with custom validation always applied after the
// schema check.
func (r *Report) Put(featurePath string, a *FeatureAnomaly) {
	if r.AnomalyInfo == nil {
		r.AnomalyInfo = make(map[string]*FeatureAnomaly)
	}
	r.AnomalyInfo[featurePath] = a
}

// AddDatasetAnomaly appends a split-wide finding.
func (r *Report) AddDatasetAnomaly(a DatasetAnomaly) {
	r.DatasetAnomalies = append(r.DatasetAnomalies, a)
}

// Marshal encodes the report canonically: fixed field order, feature
// paths sorted, compact output. Identical reports marshal to identical
// bytes, which makes re-runs byte-stable on storage.
func (r *Report) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, errors.IO(err, "encoding anomaly report")
	}
	// Encoder appends a trailing newline; the artifact contract is the
	// encoder output verbatim, so keep it.
	return buf.Bytes(), nil
}

// Unmarshal decodes a report from its canonical encoding.
func Unmarshal(raw []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.IO(err, "decoding anomaly report")
	}
	return &r, nil
}
