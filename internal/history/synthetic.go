package history

import (
	"context"
	"math"
	"math/rand"

	"github.com/pifses/mlpipeline/internal/analytics"
)

// DefaultSeed matches the sample data the models were validated against
const DefaultSeed int64 = 42

// Synthetic generates sample demand: a 100 to 150 linear ramp, a two-cycle
// sine of amplitude 20, and Gaussian noise with standard deviation 5.
// Every call reseeds, so the same days always yields the same series
// regardless of store and product.
type Synthetic struct {
	Seed int64
}

// NewSynthetic returns a generator with the given seed
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{Seed: seed}
}

// Series implements Source
func (s *Synthetic) Series(ctx context.Context, storeID, productID string, days int) (analytics.Series, error) {
	if err := validateDays(days); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Generate(days, s.Seed), nil
}

// Generate builds the sample series for days points
func Generate(days int, seed int64) analytics.Series {
	rng := rand.New(rand.NewSource(seed))
	trend := linspace(100, 150, days)
	phase := linspace(0, 4*math.Pi, days)

	out := make(analytics.Series, days)
	for i := range out {
		out[i] = trend[i] + 20*math.Sin(phase[i]) + rng.NormFloat64()*5
	}
	return out
}

// linspace returns n evenly spaced values over [start, stop], endpoints included
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
