package forecast

import (
	"errors"
	"testing"

	"github.com/pifses/mlpipeline/internal/analytics"
)

func TestFailed_WrapsSentinel(t *testing.T) {
	out := Failed(FailureModelFit, "diverged after %d iterations", 50)
	if out.OK() {
		t.Fatal("Failed outcome reports OK")
	}
	if !errors.Is(out.Err, ErrModelFit) {
		t.Errorf("Expected ErrModelFit, got %v", out.Err)
	}

	out = Failed(FailureInsufficientData, "short")
	if !errors.Is(out.Err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", out.Err)
	}

	// Unknown kinds are treated as fit failures
	out = Failed(FailureNone, "odd")
	if out.Failure != FailureModelFit {
		t.Errorf("Expected FailureModelFit, got %v", out.Failure)
	}
}

func TestOutcome_OrFallback(t *testing.T) {
	series := analytics.Series{5, 6, 7}

	ok := Success([]float64{1, 2, 3})
	if got := ok.OrFallback(series, 3); got[2] != 3 {
		t.Errorf("successful outcome should pass through, got %v", got)
	}

	// A successful outcome with the wrong length is not trusted
	short := Success([]float64{1})
	if got := short.OrFallback(series, 3); len(got) != 3 || got[0] != 7 {
		t.Errorf("expected carry-forward, got %v", got)
	}

	failed := Failed(FailureModelFit, "boom")
	if got := failed.OrFallback(analytics.Series{}, 2); len(got) != 2 || got[0] != 0 {
		t.Errorf("empty series fallback = %v, want zeros", got)
	}
}

func TestFailureKind_String(t *testing.T) {
	cases := map[FailureKind]string{
		FailureNone:             "none",
		FailureModelFit:         "model_fit",
		FailureInsufficientData: "insufficient_data",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(kind), kind.String(), want)
		}
	}
}

func TestAccuracyMetrics(t *testing.T) {
	actual := []float64{100, 200, 0}
	predicted := []float64{110, 180, 5}

	if got := MAPE(actual, predicted); !almostEqual(got, 0.1) {
		t.Errorf("MAPE = %v, want 0.1", got)
	}
	if got := MAE(actual, predicted); !almostEqual(got, 35.0/3) {
		t.Errorf("MAE = %v, want %v", got, 35.0/3)
	}
	if got := RMSE([]float64{1, 1}, []float64{4, 5}); !almostEqual(got, 3.5355339059327378) {
		t.Errorf("RMSE = %v", got)
	}
	if MAPE(nil, nil) != 0 || RMSE([]float64{1}, nil) != 0 {
		t.Error("mismatched or empty input should yield 0")
	}
}
