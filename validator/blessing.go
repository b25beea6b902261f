package validator

import "github.com/teranos/validus/anomalies"

// Blessing is the per-split pass/fail verdict. It is a closed two-variant
// type; code must never compare against the string tokens directly -
// those exist only for the persisted artifact property.
type Blessing int

const (
	// NotBlessed means the split's anomaly report has findings.
	NotBlessed Blessing = iota

	// Blessed means the split's anomaly report is empty.
	Blessed
)

// Persisted property tokens for Blessing values. Consumers reading the
// artifact property back go through ParseBlessing rather than comparing
// raw strings.
const (
	BlessedToken    = "BLESSED"
	NotBlessedToken = "NOT_BLESSED"
)

// String returns the persisted token for the blessing.
func (b Blessing) String() string {
	if b == Blessed {
		return BlessedToken
	}
	return NotBlessedToken
}

// ParseBlessing maps a persisted token back to its verdict. The second
// return is false for anything that is not one of the two tokens.
func ParseBlessing(token string) (Blessing, bool) {
	switch token {
	case BlessedToken:
		return Blessed, true
	case NotBlessedToken:
		return NotBlessed, true
	default:
		return NotBlessed, false
	}
}

// EvaluateBlessing derives a split's verdict from its anomaly report:
// Blessed iff the report has no feature findings and no dataset findings.
// Pure function, no failure modes.
func EvaluateBlessing(report *anomalies.Report) Blessing {
	if report.Empty() {
		return Blessed
	}
	return NotBlessed
}
