package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pifses/mlpipeline/internal/analytics"
	"github.com/pifses/mlpipeline/internal/analytics/forecast"
	"github.com/pifses/mlpipeline/internal/cache"
	"github.com/pifses/mlpipeline/internal/history"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Horizon bounds for a forecast request
const (
	MinHorizon        = 1
	DefaultMaxHorizon = 90
)

// StaticAccuracy is the descriptive accuracy reported with every forecast
var StaticAccuracy = AccuracyMetrics{MAPE: 0.15, RMSE: 5.2}

// ForecastService produces ensemble forecasts and owns the cache contract:
// a hit is returned byte for byte, a miss is computed and stored for the
// cache TTL.
type ForecastService struct {
	logger      *logging.Logger
	registry    *forecast.Registry
	ensemble    *forecast.Ensemble
	history     history.Source
	cache       cache.ForecastCache
	metrics     *metrics.Metrics
	cacheTTL    time.Duration
	historyDays int
	maxHorizon  int
	now         func() time.Time
}

// ForecastOptions tunes a ForecastService
type ForecastOptions struct {
	CacheTTL    time.Duration
	HistoryDays int
	MaxHorizon  int // capped at DefaultMaxHorizon
}

// NewForecastService creates a new ForecastService
func NewForecastService(
	logger *logging.Logger,
	registry *forecast.Registry,
	ensemble *forecast.Ensemble,
	source history.Source,
	fc cache.ForecastCache,
	m *metrics.Metrics,
	opts ForecastOptions,
) *ForecastService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 90
	}
	if opts.MaxHorizon <= 0 || opts.MaxHorizon > DefaultMaxHorizon {
		opts.MaxHorizon = DefaultMaxHorizon
	}
	return &ForecastService{
		logger:      logger,
		registry:    registry,
		ensemble:    ensemble,
		history:     source,
		cache:       fc,
		metrics:     m,
		cacheTTL:    opts.CacheTTL,
		historyDays: opts.HistoryDays,
		maxHorizon:  opts.MaxHorizon,
		now:         time.Now,
	}
}

// ForecastRequest represents a forecast request
type ForecastRequest struct {
	StoreID           string
	ProductID         string
	Horizon           int
	IncludeConfidence bool
}

// AccuracyMetrics is the descriptive accuracy block of a result
type AccuracyMetrics struct {
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
}

// ForecastResult is the cached and returned forecast document
type ForecastResult struct {
	StoreID         string                   `json:"store_id"`
	ProductID       string                   `json:"product_id"`
	GeneratedAt     time.Time                `json:"generated_at"`
	Horizon         int                      `json:"horizon"`
	Predictions     []float64                `json:"predictions"`
	ConfidenceBand  *forecast.ConfidenceBand `json:"confidence_band,omitempty"`
	EnsembleWeights forecast.Weights         `json:"ensemble_weights"`
	AccuracyMetrics AccuracyMetrics          `json:"accuracy_metrics"`
	ForecastDate    string                   `json:"forecast_date"`
	DaysAhead       int                      `json:"days_ahead"`
}

// Validate checks the request shape. It runs before any cache or model work.
func (r *ForecastRequest) Validate(maxHorizon int) error {
	if r.StoreID == "" {
		return validationError("store_id", "store_id is required")
	}
	if r.ProductID == "" {
		return validationError("product_id", "product_id is required")
	}
	if r.Horizon < MinHorizon || r.Horizon > maxHorizon {
		return validationError("days_ahead",
			fmt.Sprintf("days_ahead must be between %d and %d, got %d", MinHorizon, maxHorizon, r.Horizon))
	}
	return nil
}

// Predict returns the JSON encoding of a ForecastResult. The cache key is
// per store and product only, so a cached result is served regardless of
// the requested horizon or confidence flag until it expires.
func (s *ForecastService) Predict(ctx context.Context, req *ForecastRequest) ([]byte, error) {
	if err := req.Validate(s.maxHorizon); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "forecast.predict",
		attribute.String("store_id", req.StoreID),
		attribute.String("product_id", req.ProductID),
		attribute.Int("horizon", req.Horizon),
	)
	defer span.End()
	log := s.logger.WithContext(ctx).ForSeries(req.StoreID, req.ProductID)

	key := cache.ForecastKey(req.StoreID, req.ProductID)
	if cached, ok := s.lookup(ctx, log, key); ok {
		s.metrics.Forecasts.WithLabelValues(metrics.SourceCache).Inc()
		span.SetAttributes(attribute.Bool("cache_hit", true))
		s.noteStaleHorizon(log, key, cached, req.Horizon)
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	start := time.Now()
	result, err := s.compute(ctx, log, req)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, pipelineError(fmt.Errorf("failed to encode forecast: %w", err))
	}

	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.metrics.CacheErrors.WithLabelValues("set").Inc()
		log.Warn("Failed to cache forecast", "key", key, "error", err)
	}

	s.metrics.Forecasts.WithLabelValues(metrics.SourceComputed).Inc()
	s.metrics.ForecastDuration.Observe(time.Since(start).Seconds())
	log.Info("Forecast generated",
		"horizon", req.Horizon,
		"latency_ms", time.Since(start).Milliseconds())

	return data, nil
}

// lookup reads the cache. Any cache failure counts as a miss.
func (s *ForecastService) lookup(ctx context.Context, log *logging.Logger, key string) ([]byte, bool) {
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.CacheErrors.WithLabelValues("get").Inc()
		if errors.Is(err, cache.ErrUnavailable) {
			log.Warn("Forecast cache unavailable, computing", "key", key, "error", err)
		} else {
			log.Error("Forecast cache read failed, computing", "key", key, "error", err)
		}
		return nil, false
	}
	return cached, ok
}

func (s *ForecastService) noteStaleHorizon(log *logging.Logger, key string, cached []byte, horizon int) {
	var head struct {
		Horizon int `json:"horizon"`
	}
	if err := json.Unmarshal(cached, &head); err == nil && head.Horizon != horizon {
		log.Debug("Serving cached forecast with a different horizon",
			"key", key, "cached_horizon", head.Horizon, "requested_horizon", horizon)
	}
}

func (s *ForecastService) compute(ctx context.Context, log *logging.Logger, req *ForecastRequest) (*ForecastResult, error) {
	trend, okTrend := s.registry.Get(forecast.TrendModelName)
	pattern, okPattern := s.registry.Get(forecast.PatternModelName)
	if !okTrend || !okPattern {
		return nil, NewServiceErrorWithDetails(CodeUnavailable, "forecast models are not loaded",
			map[string]interface{}{"loaded": s.registry.Names()})
	}

	series, err := s.history.Series(ctx, req.StoreID, req.ProductID, s.historyDays)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, NewServiceErrorWithDetails(CodeNotFound, err.Error(),
				map[string]interface{}{"store_id": req.StoreID, "product_id": req.ProductID})
		}
		return nil, pipelineError(err)
	}

	trendValues, patternValues := s.runModels(log, series, req.Horizon, trend, pattern)

	combined, err := s.ensemble.Combine(trendValues, patternValues)
	if err != nil {
		return nil, pipelineError(err)
	}

	now := s.now().UTC()
	result := &ForecastResult{
		StoreID:         req.StoreID,
		ProductID:       req.ProductID,
		GeneratedAt:     now,
		Horizon:         req.Horizon,
		Predictions:     combined,
		EnsembleWeights: s.ensemble.Weights(),
		AccuracyMetrics: StaticAccuracy,
		ForecastDate:    now.Format("2006-01-02"),
		DaysAhead:       req.Horizon,
	}
	if req.IncludeConfidence {
		band, err := s.ensemble.Band(combined)
		if err != nil {
			return nil, pipelineError(err)
		}
		result.ConfidenceBand = &band
	}
	return result, nil
}

// runModels runs both models concurrently and substitutes the carry-forward
// fallback for any failed outcome.
func (s *ForecastService) runModels(
	log *logging.Logger,
	series analytics.Series,
	horizon int,
	trend, pattern forecast.Model,
) ([]float64, []float64) {
	var (
		wg       sync.WaitGroup
		outcomes [2]forecast.Outcome
	)
	models := [2]forecast.Model{trend, pattern}

	for i, m := range models {
		wg.Add(1)
		go func(i int, m forecast.Model) {
			defer wg.Done()
			outcomes[i] = m.Forecast(series.Clone(), horizon)
		}(i, m)
	}
	wg.Wait()

	var values [2][]float64
	for i, outcome := range outcomes {
		if !outcome.OK() {
			s.metrics.ModelFallbacks.WithLabelValues(models[i].Name(), outcome.Failure.String()).Inc()
			log.Warn("Model failed, using carry-forward fallback",
				"model", models[i].Name(),
				"kind", outcome.Failure.String(),
				"error", outcome.Err)
		}
		values[i] = outcome.OrFallback(series, horizon)
	}
	return values[0], values[1]
}
