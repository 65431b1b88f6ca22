// Package forecast implements the demand forecast engine: a trend model, a
// pattern model, and the weighted ensemble that merges them.
package forecast

import (
	"errors"
	"fmt"

	"github.com/pifses/mlpipeline/internal/analytics"
)

// Model names as reported in model status and metrics
const (
	TrendModelName   = "arima"
	PatternModelName = "lstm"
)

// Default ensemble configuration. Overridable only through explicit config.
const (
	DefaultTrendWeight    = 0.4
	DefaultPatternWeight  = 0.6
	DefaultConfidenceBand = 0.15
)

// Sentinel errors carried by failed outcomes
var (
	ErrModelFit         = errors.New("model fit failed")
	ErrInsufficientData = errors.New("insufficient data")
)

// FailureKind names why a model call did not produce a forecast
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureModelFit
	FailureInsufficientData
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureModelFit:
		return "model_fit"
	case FailureInsufficientData:
		return "insufficient_data"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// Outcome is the tagged result of a single model call: either Values, or a
// Failure kind with the error that caused it.
type Outcome struct {
	Values  []float64
	Failure FailureKind
	Err     error
}

// Success wraps a forecast sequence
func Success(values []float64) Outcome {
	return Outcome{Values: values}
}

// Failed builds a failed outcome. The error wraps the sentinel for kind.
func Failed(kind FailureKind, format string, args ...interface{}) Outcome {
	var sentinel error
	switch kind {
	case FailureInsufficientData:
		sentinel = ErrInsufficientData
	default:
		kind = FailureModelFit
		sentinel = ErrModelFit
	}
	return Outcome{
		Failure: kind,
		Err:     fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}

// OK reports whether the model produced a forecast
func (o Outcome) OK() bool {
	return o.Failure == FailureNone
}

// OrFallback returns the forecast, or the carry-forward fallback when the
// model failed. It never fails.
func (o Outcome) OrFallback(series analytics.Series, horizon int) []float64 {
	if o.OK() && len(o.Values) == horizon {
		return o.Values
	}
	return CarryForward(series, horizon)
}

// CarryForward repeats the last observation horizon times
func CarryForward(series analytics.Series, horizon int) []float64 {
	if horizon < 0 {
		horizon = 0
	}
	last := series.Last()
	out := make([]float64, horizon)
	for i := range out {
		out[i] = last
	}
	return out
}

// Model produces a forecast of horizon steps from a series
type Model interface {
	Name() string
	Forecast(series analytics.Series, horizon int) Outcome
}
