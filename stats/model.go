// Package stats models per-split dataset statistics: the read-only
// summaries produced upstream that validation runs consume. A statistics
// bundle is a directory artifact holding one statistics blob per split
// under Split-{name}/FeatureStats.json.
package stats

// FeatureType is the declared value type of a feature's statistics.
type FeatureType string

const (
	TypeInt    FeatureType = "INT"
	TypeFloat  FeatureType = "FLOAT"
	TypeString FeatureType = "STRING"
	TypeBytes  FeatureType = "BYTES"
)

// SplitStatistics is one split's statistics blob.
type SplitStatistics struct {
	// NumExamples is the total example count in the split.
	NumExamples int64 `json:"num_examples"`

	// Features maps feature path to that feature's statistics.
	Features map[string]*FeatureStatistics `json:"features"`
}

// FeatureStatistics summarizes one feature's value distribution. Exactly
// one of NumStats or StringStats is set, matching Type.
type FeatureStatistics struct {
	Type        FeatureType        `json:"type"`
	NumStats    *NumericStatistics `json:"num_stats,omitempty"`
	StringStats *StringStatistics  `json:"string_stats,omitempty"`
}

// CommonStatistics holds presence and value-count statistics shared by
// all feature types.
type CommonStatistics struct {
	NumNonMissing int64   `json:"num_non_missing"`
	NumMissing    int64   `json:"num_missing"`
	MinNumValues  int64   `json:"min_num_values"`
	MaxNumValues  int64   `json:"max_num_values"`
	AvgNumValues  float64 `json:"avg_num_values"`
	TotNumValues  int64   `json:"tot_num_values"`
}

// NumericStatistics summarizes a numeric feature.
type NumericStatistics struct {
	CommonStats CommonStatistics `json:"common_stats"`
	Min         float64          `json:"min"`
	Max         float64          `json:"max"`
	Mean        float64          `json:"mean"`
	Median      float64          `json:"median"`
	StdDev      float64          `json:"std_dev"`
	NumZeros    int64            `json:"num_zeros"`
}

// StringStatistics summarizes a string or bytes feature.
type StringStatistics struct {
	CommonStats CommonStatistics `json:"common_stats"`
	Unique      int64            `json:"unique"`
	AvgLength   float64          `json:"avg_length"`
	TopValues   []ValueFrequency `json:"top_values,omitempty"`
}

// ValueFrequency is one entry of a string feature's frequency table.
type ValueFrequency struct {
	Value     string `json:"value"`
	Frequency int64  `json:"frequency"`
}

// CommonStats returns the feature's common statistics regardless of type,
// or nil when no statistics are present.
func (f *FeatureStatistics) CommonStats() *CommonStatistics {
	switch {
	case f == nil:
		return nil
	case f.NumStats != nil:
		return &f.NumStats.CommonStats
	case f.StringStats != nil:
		return &f.StringStats.CommonStats
	default:
		return nil
	}
}

// PresenceFraction returns the fraction of examples in which the feature
// is present, and false when it cannot be derived.
func (f *FeatureStatistics) PresenceFraction() (float64, bool) {
	cs := f.CommonStats()
	if cs == nil {
		return 0, false
	}
	total := cs.NumNonMissing + cs.NumMissing
	if total == 0 {
		return 0, false
	}
	return float64(cs.NumNonMissing) / float64(total), true
}
