// Package analytics provides the series type shared by the forecast and
// anomaly packages.
package analytics

import (
	"math"
)

// Series is an ordered, gap-free sequence of daily observations, oldest first.
// Consumers treat it as immutable and copy before mutating.
type Series []float64

// Len returns the number of observations
func (s Series) Len() int {
	return len(s)
}

// Last returns the most recent observation, or 0 for an empty series
func (s Series) Last() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// Clone returns an independent copy
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Tail returns the trailing n observations. A non-positive n or one larger
// than the series returns the whole series.
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Mean calculates the arithmetic mean
func (s Series) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// PopStdDev calculates the population standard deviation (divisor n)
func (s Series) PopStdDev() float64 {
	if len(s) == 0 {
		return 0
	}
	mu := s.Mean()
	sumSq := 0.0
	for _, v := range s {
		diff := v - mu
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(s)))
}

// AllFinite reports whether every observation is a finite number
func (s Series) AllFinite() bool {
	return AllFinite(s)
}

// AllFinite reports whether every value is neither NaN nor ±Inf
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
