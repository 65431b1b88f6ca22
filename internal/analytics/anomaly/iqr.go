package anomaly

import (
	"sort"

	"github.com/pifses/mlpipeline/internal/analytics"
)

// DefaultMultiplier is the Tukey fence multiplier
const DefaultMultiplier = 1.5

// IQRDetector flags points outside [Q1 - k*IQR, Q3 + k*IQR]
type IQRDetector struct {
	Multiplier float64
}

// NewIQRDetector returns a detector using multiplier k. A non-positive k
// selects DefaultMultiplier.
func NewIQRDetector(k float64) *IQRDetector {
	if k <= 0 {
		k = DefaultMultiplier
	}
	return &IQRDetector{Multiplier: k}
}

// Name returns the algorithm name
func (d *IQRDetector) Name() string {
	return "iqr"
}

// Detect computes the quartile fences over series and flags every value
// strictly outside them.
func (d *IQRDetector) Detect(series analytics.Series) Report {
	report := Report{Anomalies: []Anomaly{}}
	if len(series) == 0 {
		return report
	}

	k := d.Multiplier
	if k <= 0 {
		k = DefaultMultiplier
	}

	q1, q3, iqr := CalculateIQR(series)
	report.Thresholds = Thresholds{
		Lower: q1 - k*iqr,
		Upper: q3 + k*iqr,
	}

	for i, v := range series {
		switch {
		case v > report.Thresholds.Upper:
			report.Anomalies = append(report.Anomalies, Anomaly{Index: i, Value: v, Severity: SeverityHigh})
		case v < report.Thresholds.Lower:
			report.Anomalies = append(report.Anomalies, Anomaly{Index: i, Value: v, Severity: SeverityLow})
		}
	}

	return report
}

// percentile calculates the p-th percentile (0..100) of sorted data with
// linear interpolation between closest ranks.
func percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	if len(sortedData) == 1 {
		return sortedData[0]
	}

	index := (p / 100) * float64(len(sortedData)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sortedData) {
		return sortedData[len(sortedData)-1]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}

// CalculateIQR returns Q1, Q3, and IQR for a slice of values
func CalculateIQR(values []float64) (q1, q3, iqr float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	sortedValues := make([]float64, len(values))
	copy(sortedValues, values)
	sort.Float64s(sortedValues)

	q1 = percentile(sortedValues, 25)
	q3 = percentile(sortedValues, 75)
	iqr = q3 - q1

	return q1, q3, iqr
}
