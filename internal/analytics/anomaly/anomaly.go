// Package anomaly flags outliers in a sales series.
package anomaly

import (
	"github.com/pifses/mlpipeline/internal/analytics"
)

// Severity classifies which fence an anomaly crossed
type Severity string

const (
	SeverityHigh Severity = "high" // above the upper bound
	SeverityLow  Severity = "low"  // below the lower bound
)

// Anomaly is a single flagged observation
type Anomaly struct {
	Index    int      `json:"index"`
	Value    float64  `json:"value"`
	Severity Severity `json:"severity"`
}

// Thresholds are the fences used for a detection run
type Thresholds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Report is the result of one detection run. Anomalies are in index order.
type Report struct {
	Anomalies  []Anomaly
	Thresholds Thresholds
}

// Count returns the number of anomalies
func (r Report) Count() int {
	return len(r.Anomalies)
}

// Detector finds anomalies in a series. Implementations hold no state
// between calls.
type Detector interface {
	Name() string
	Detect(series analytics.Series) Report
}
