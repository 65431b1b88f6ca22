package forecast

import (
	"github.com/pifses/mlpipeline/internal/analytics"
)

// DefaultPatternLookback is the distance, in observations, over which the
// pattern model measures its local trend.
const DefaultPatternLookback = 10

// PatternModel extrapolates the recent standardized trend. It stands in for
// a learned sequence model and fits nothing.
type PatternModel struct {
	Lookback int
}

// NewPatternModel returns a pattern model with the default lookback
func NewPatternModel() *PatternModel {
	return &PatternModel{Lookback: DefaultPatternLookback}
}

// Name returns the model name
func (m *PatternModel) Name() string {
	return PatternModelName
}

// Forecast standardizes the series with population statistics, takes the
// slope between z[last-lookback] and z[last], extends it horizon steps and
// maps the result back to the original scale.
func (m *PatternModel) Forecast(series analytics.Series, horizon int) Outcome {
	lookback := m.Lookback
	if lookback <= 0 {
		lookback = DefaultPatternLookback
	}

	if horizon <= 0 {
		return Success([]float64{})
	}
	if len(series) < lookback+1 {
		return Failed(FailureInsufficientData, "pattern model needs at least %d points, got %d", lookback+1, len(series))
	}
	if !series.AllFinite() {
		return Failed(FailureModelFit, "series contains non-finite values")
	}

	mu := series.Mean()
	scale := series.PopStdDev()
	// A constant series has no spread; scale by one so z is all zeros.
	if scale == 0 {
		scale = 1
	}

	last := len(series) - 1
	zLast := (series[last] - mu) / scale
	zPrev := (series[last-lookback] - mu) / scale
	trend := (zLast - zPrev) / float64(lookback)

	predictions := make([]float64, horizon)
	for i := 1; i <= horizon; i++ {
		z := zLast + trend*float64(i)
		predictions[i-1] = z*scale + mu
	}

	if !analytics.AllFinite(predictions) {
		return Failed(FailureModelFit, "non-finite projection")
	}
	return Success(predictions)
}
