package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Forecasts.WithLabelValues(SourceCache).Inc()
	if got := testutil.ToFloat64(b.Forecasts.WithLabelValues(SourceCache)); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/forecast/predict", 200)
	m.ObserveRequest("POST", "/forecast/predict", 200)
	m.ObserveRequest("POST", "/forecast/predict", 400)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/forecast/predict", "200")); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/forecast/predict", "400")); got != 1 {
		t.Errorf("400 count = %v, want 1", got)
	}
}

func TestGatherHistogram(t *testing.T) {
	m := New()
	m.ForecastDuration.Observe(0.01)
	m.ForecastDuration.Observe(0.02)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var hist *dto.Histogram
	for _, f := range families {
		if f.GetName() == "mlpipeline_forecast_duration_seconds" {
			hist = f.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil {
		t.Fatal("histogram not registered")
	}
	if hist.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", hist.GetSampleCount())
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.CacheErrors.WithLabelValues("get").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `mlpipeline_cache_errors_total{op="get"} 1`) {
		t.Errorf("exposition missing cache error counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition missing Go runtime collector")
	}
}
