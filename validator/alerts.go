package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/validus/anomalies"
)

// Alert names for the two anomaly categories.
const (
	AlertNameFeatureAnomalies = "Feature-level anomalies present"
	AlertNameDatasetAnomalies = "Dataset anomalies present"
)

// Alert is one human-readable record handed to downstream notification
// systems, scoped to a split and span.
type Alert struct {
	Name string `json:"alert_name"`
	Body string `json:"alert_body"`
}

// FormatAlerts converts one split's anomaly report into alert records.
// A non-empty feature mapping yields exactly one feature-level record
// (feature names sorted, comma-joined); each dataset finding yields one
// record of its own, after the feature-level record. An empty report
// yields nothing. Pure transform, no failure modes.
func FormatAlerts(report *anomalies.Report, split string, span int64) []Alert {
	if report.Empty() {
		return nil
	}

	var alerts []Alert

	if len(report.AnomalyInfo) > 0 {
		names := make([]string, 0, len(report.AnomalyInfo))
		for path := range report.AnomalyInfo {
			names = append(names, path)
		}
		sort.Strings(names)

		alerts = append(alerts, Alert{
			Name: AlertNameFeatureAnomalies,
			Body: fmt.Sprintf(
				"Feature(s) %s contain(s) anomalies for split %s, span %d. See Anomalies artifact for more details.",
				strings.Join(names, ", "), split, span),
		})
	}

	for _, da := range report.DatasetAnomalies {
		alerts = append(alerts, Alert{
			Name: AlertNameDatasetAnomalies,
			Body: fmt.Sprintf("%s in split %s, span %d.", da.Description, split, span),
		})
	}

	return alerts
}
