package forecast

import (
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch is returned when the two model outputs differ in length
var ErrLengthMismatch = errors.New("forecast length mismatch")

// ErrNonFinite is returned when combining or widening overflows float64
var ErrNonFinite = errors.New("forecast value out of float64 range")

// Weights are the ensemble weights of the trend and pattern models
type Weights struct {
	Trend   float64 `json:"trend"`
	Pattern float64 `json:"pattern"`
}

// DefaultWeights returns the stock 0.4/0.6 split
func DefaultWeights() Weights {
	return Weights{Trend: DefaultTrendWeight, Pattern: DefaultPatternWeight}
}

// Validate checks that the weights form a weighted average
func (w Weights) Validate() error {
	if w.Trend < 0 || w.Pattern < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	if math.Abs(w.Trend+w.Pattern-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %.4f", w.Trend+w.Pattern)
	}
	return nil
}

// ConfidenceBand is a symmetric multiplicative band around a forecast
type ConfidenceBand struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// Ensemble merges trend and pattern forecasts
type Ensemble struct {
	weights Weights
	band    float64
}

// NewEnsemble validates the configuration and returns an Ensemble. band is
// the fractional half-width, 0.15 meaning ±15%.
func NewEnsemble(weights Weights, band float64) (*Ensemble, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if band < 0 || band >= 1 {
		return nil, fmt.Errorf("confidence band must be in [0, 1), got %v", band)
	}
	return &Ensemble{weights: weights, band: band}, nil
}

// DefaultEnsemble returns the ensemble with stock weights and band
func DefaultEnsemble() *Ensemble {
	return &Ensemble{weights: DefaultWeights(), band: DefaultConfidenceBand}
}

// Weights returns the configured weights
func (e *Ensemble) Weights() Weights {
	return e.weights
}

// BandWidth returns the configured fractional half-width
func (e *Ensemble) BandWidth() float64 {
	return e.band
}

// Combine returns the elementwise weighted sum of trend and pattern
func (e *Ensemble) Combine(trend, pattern []float64) ([]float64, error) {
	if len(trend) != len(pattern) {
		return nil, fmt.Errorf("%w: trend has %d values, pattern has %d", ErrLengthMismatch, len(trend), len(pattern))
	}

	combined := make([]float64, len(trend))
	for i := range trend {
		combined[i] = e.weights.Trend*trend[i] + e.weights.Pattern*pattern[i]
		if math.IsInf(combined[i], 0) || math.IsNaN(combined[i]) {
			return nil, fmt.Errorf("%w: combined value %d", ErrNonFinite, i)
		}
	}
	return combined, nil
}

// Band derives lower and upper sequences from a combined forecast. Values
// close to the float64 limit can overflow when widened; that is an error.
func (e *Ensemble) Band(combined []float64) (ConfidenceBand, error) {
	band := ConfidenceBand{
		Lower: make([]float64, len(combined)),
		Upper: make([]float64, len(combined)),
	}
	for i, v := range combined {
		band.Lower[i] = (1 - e.band) * v
		band.Upper[i] = (1 + e.band) * v
		if math.IsInf(band.Lower[i], 0) || math.IsInf(band.Upper[i], 0) {
			return ConfidenceBand{}, fmt.Errorf("%w: confidence band at step %d", ErrNonFinite, i+1)
		}
	}
	return band, nil
}
