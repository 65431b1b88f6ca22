// Package metrics holds the Prometheus collectors of the forecasting
// service. Each Metrics owns its registry so tests can build as many as
// they like.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mlpipeline"

// Forecast sources
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
)

// Metrics holds all collectors
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	Forecasts        *prometheus.CounterVec
	ModelFallbacks   *prometheus.CounterVec
	CacheErrors      *prometheus.CounterVec
	ForecastDuration prometheus.Histogram
	AnomaliesFound   prometheus.Counter
	TrainingJobs     *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		Forecasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecasts served, by cache or fresh computation",
		}, []string{"source"}),
		ModelFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_fallbacks_total",
			Help:      "Model runs replaced by the carry-forward fallback",
		}, []string{"model", "kind"}),
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Forecast cache operations that failed",
		}, []string{"op"}),
		ForecastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Time spent computing a forecast on a cache miss",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		AnomaliesFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Anomalous points reported by the detector",
		}),
		TrainingJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_jobs_total",
			Help:      "Training requests by outcome at acceptance",
		}, []string{"result"}),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts one finished HTTP request
func (m *Metrics) ObserveRequest(method, path string, status int) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
