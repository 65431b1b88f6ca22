package forecast

import (
	"math"

	"github.com/pifses/mlpipeline/internal/analytics"
)

// TrendModel forecasts with ARIMA(1,1,1): one difference, an AR(1) term
// estimated by Yule-Walker, and an MA(1) term from the residual ACF.
type TrendModel struct {
	P int // AR order
	D int // Differencing order
	Q int // MA order
}

// ARIMAFit holds the fitted coefficients of a TrendModel
type ARIMAFit struct {
	AR        []float64
	MA        []float64
	Drift     float64   // mean of the differenced series
	Diffs     []float64 // differenced series the model was fitted on
	Residuals []float64 // in-sample one-step residuals of the centered differences
	Sigma     float64   // residual standard deviation
}

// NewTrendModel returns the fixed-order ARIMA(1,1,1) model
func NewTrendModel() *TrendModel {
	return &TrendModel{P: 1, D: 1, Q: 1}
}

// Name returns the model name
func (m *TrendModel) Name() string {
	return TrendModelName
}

// minPoints is the shortest series that leaves P+Q+1 values after differencing
func (m *TrendModel) minPoints() int {
	return m.P + m.Q + 1 + m.D
}

// Forecast fits the model on series and projects horizon steps forward
func (m *TrendModel) Forecast(series analytics.Series, horizon int) Outcome {
	if horizon <= 0 {
		return Success([]float64{})
	}

	fit, outcome := m.Fit(series)
	if !outcome.OK() {
		return outcome
	}

	// Project the centered differences and add the drift back at every
	// step. Future shocks are zero so the MA term only touches the first step.
	lastResidual := fit.Residuals[len(fit.Residuals)-1]

	predictions := make([]float64, horizon)
	level := series.Last()
	prev := fit.Diffs[len(fit.Diffs)-1] - fit.Drift
	for h := 0; h < horizon; h++ {
		dev := 0.0
		if len(fit.AR) > 0 {
			dev += fit.AR[0] * prev
		}
		if h == 0 && len(fit.MA) > 0 {
			dev += fit.MA[0] * lastResidual
		}
		level += fit.Drift + dev
		predictions[h] = level
		prev = dev
	}

	if !analytics.AllFinite(predictions) {
		return Failed(FailureModelFit, "non-finite projection")
	}
	return Success(predictions)
}

// Fit estimates the AR and MA coefficients. A failed Outcome is returned when
// the series cannot support the model.
func (m *TrendModel) Fit(series analytics.Series) (*ARIMAFit, Outcome) {
	if len(series) < m.minPoints() {
		return nil, Failed(FailureInsufficientData, "arima needs at least %d points, got %d", m.minPoints(), len(series))
	}
	if !series.AllFinite() {
		return nil, Failed(FailureModelFit, "series contains non-finite values")
	}

	diffs := difference(series, m.D)
	drift := mean(diffs)
	centered := make([]float64, len(diffs))
	for i, d := range diffs {
		centered[i] = d - drift
	}

	ar := levinsonDurbin(autocorrelation(centered, m.P), m.P)
	for _, phi := range ar {
		if math.IsNaN(phi) || math.Abs(phi) >= 1 {
			return nil, Failed(FailureModelFit, "non-stationary AR coefficient %.4f", phi)
		}
	}

	ma := estimateMA(centered, ar, m.Q)
	residuals := residualsOf(centered, ar, ma)

	return &ARIMAFit{
		AR:        ar,
		MA:        ma,
		Drift:     drift,
		Diffs:     diffs,
		Residuals: residuals,
		Sigma:     stdDev(residuals[maxInt(len(ar), len(ma)):]),
	}, Success(nil)
}

// difference applies differencing d times
func difference(values []float64, d int) []float64 {
	result := values
	for i := 0; i < d; i++ {
		diffed := make([]float64, len(result)-1)
		for j := 1; j < len(result); j++ {
			diffed[j-1] = result[j] - result[j-1]
		}
		result = diffed
	}
	return result
}

// autocorrelation calculates the sample ACF at lags 1..k
func autocorrelation(values []float64, k int) []float64 {
	n := len(values)
	if n == 0 || k <= 0 {
		return []float64{}
	}

	mu := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mu
		variance += diff * diff
	}

	acf := make([]float64, k)
	if variance == 0 {
		return acf
	}

	for lag := 1; lag <= k; lag++ {
		cov := 0.0
		for t := lag; t < n; t++ {
			cov += (values[t] - mu) * (values[t-lag] - mu)
		}
		acf[lag-1] = cov / variance
	}

	return acf
}

// levinsonDurbin solves the Yule-Walker equations for an AR(p) model
func levinsonDurbin(acf []float64, p int) []float64 {
	if len(acf) < p {
		p = len(acf)
	}
	if p == 0 {
		return []float64{}
	}

	phi := make([][]float64, p+1)
	for i := range phi {
		phi[i] = make([]float64, p+1)
	}

	phi[1][1] = acf[0]
	v := 1 - acf[0]*acf[0]

	for k := 2; k <= p; k++ {
		if v == 0 {
			break
		}

		num := acf[k-1]
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-1-j]
		}
		phi[k][k] = num / v

		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
		v *= 1 - phi[k][k]*phi[k][k]
	}

	result := make([]float64, p)
	for i := 1; i <= p; i++ {
		result[i-1] = phi[p][i]
	}
	return result
}

// estimateMA approximates MA coefficients from the ACF of the AR residuals,
// halved to keep the model invertible.
func estimateMA(values, ar []float64, q int) []float64 {
	if q == 0 {
		return []float64{}
	}

	p := len(ar)
	residuals := make([]float64, len(values))
	for t := p; t < len(values); t++ {
		predicted := 0.0
		for i := 0; i < p; i++ {
			predicted += ar[i] * values[t-1-i]
		}
		residuals[t] = values[t] - predicted
	}

	acf := autocorrelation(residuals[p:], q)
	ma := make([]float64, q)
	for i := 0; i < q && i < len(acf); i++ {
		ma[i] = acf[i] * 0.5
	}
	return ma
}

// residualsOf runs the fitted ARMA recursion over values and returns the
// one-step residuals. Warm-up positions are zero.
func residualsOf(values, ar, ma []float64) []float64 {
	n := len(values)
	p, q := len(ar), len(ma)
	residuals := make([]float64, n)

	for t := maxInt(p, q); t < n; t++ {
		fitted := 0.0
		for i := 0; i < p; i++ {
			fitted += ar[i] * values[t-1-i]
		}
		for i := 0; i < q && t-1-i >= 0; i++ {
			fitted += ma[i] * residuals[t-1-i]
		}
		residuals[t] = values[t] - fitted
	}
	return residuals
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mu := mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mu
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
