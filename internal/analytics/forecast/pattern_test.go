package forecast

import (
	"math"
	"testing"

	"github.com/pifses/mlpipeline/internal/analytics"
)

func TestPatternModel_Name(t *testing.T) {
	if NewPatternModel().Name() != "lstm" {
		t.Errorf("Expected name 'lstm'")
	}
}

func TestPatternModel_LinearExtrapolation(t *testing.T) {
	// On a linear series the standardized slope maps back to the raw slope.
	m := NewPatternModel()
	series := generateLinearSeries(20, 3, 100)

	out := m.Forecast(series, 5)
	if !out.OK() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}

	last := series.Last()
	for i, v := range out.Values {
		want := last + 3*float64(i+1)
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("value[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestPatternModel_MatchesFormula(t *testing.T) {
	m := NewPatternModel()
	series := generateSalesScenario(90, 42)
	horizon := 14

	out := m.Forecast(series, horizon)
	if !out.OK() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}

	mu := series.Mean()
	sd := series.PopStdDev()
	n := len(series)
	zLast := (series[n-1] - mu) / sd
	trend := (zLast - (series[n-11]-mu)/sd) / 10

	for i := 1; i <= horizon; i++ {
		want := (zLast+trend*float64(i))*sd + mu
		if !almostEqual(out.Values[i-1], want) {
			t.Errorf("value[%d] = %v, want %v", i-1, out.Values[i-1], want)
		}
	}
}

func TestPatternModel_ShortSeries(t *testing.T) {
	m := NewPatternModel()

	series := make(analytics.Series, 10)
	for i := range series {
		series[i] = float64(i)
	}

	out := m.Forecast(series, 7)
	if out.Failure != FailureInsufficientData {
		t.Fatalf("Expected insufficient data for 10 points, got %v", out.Failure)
	}

	values := out.OrFallback(series, 7)
	for i, v := range values {
		if v != 9 {
			t.Errorf("fallback[%d] = %v, want 9", i, v)
		}
	}

	// Eleven points is the minimum
	series = append(series, 10)
	if out := m.Forecast(series, 7); !out.OK() {
		t.Errorf("Expected success for 11 points, got %v", out.Err)
	}
}

func TestPatternModel_ConstantSeries(t *testing.T) {
	m := NewPatternModel()
	series := make(analytics.Series, 30)
	for i := range series {
		series[i] = 42
	}

	out := m.Forecast(series, 3)
	if !out.OK() {
		t.Fatalf("constant series should not fail: %v", out.Err)
	}
	for i, v := range out.Values {
		if v != 42 {
			t.Errorf("value[%d] = %v, want 42", i, v)
		}
	}
}

func TestPatternModel_NonFinite(t *testing.T) {
	series := generateSalesScenario(30, 5)
	series[3] = math.Inf(1)

	out := NewPatternModel().Forecast(series, 3)
	if out.Failure != FailureModelFit {
		t.Errorf("Expected model fit failure, got %v", out.Failure)
	}
}
