package forecast

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pifses/mlpipeline/internal/analytics"
)

// Common test data and helpers for all forecast tests

// generateLinearSeries creates y = slope*x + intercept
func generateLinearSeries(n int, slope, intercept float64) analytics.Series {
	s := make(analytics.Series, n)
	for i := range s {
		s[i] = slope*float64(i) + intercept
	}
	return s
}

// generateSalesScenario builds the reference demand scenario: a 100 to 150
// ramp, a two-cycle sine of amplitude 20, and N(0,5) noise from a fixed seed.
func generateSalesScenario(days int, seed int64) analytics.Series {
	rng := rand.New(rand.NewSource(seed))
	s := make(analytics.Series, days)
	for i := range s {
		frac := 0.0
		if days > 1 {
			frac = float64(i) / float64(days-1)
		}
		s[i] = 100 + 50*frac + 20*math.Sin(4*math.Pi*frac) + rng.NormFloat64()*5
	}
	return s
}

func assertFinite(t *testing.T, values []float64) {
	t.Helper()
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("value[%d] = %v is not finite", i, v)
		}
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
