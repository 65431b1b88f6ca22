package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/pifses/mlpipeline/internal/analytics/anomaly"
	"github.com/pifses/mlpipeline/internal/history"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Anomaly window bounds
const (
	MinAnomalyWindow     = 1
	MaxAnomalyWindow     = 365
	DefaultAnomalyWindow = 30
)

// AnomalyService runs the detector over recent sales history
type AnomalyService struct {
	logger   *logging.Logger
	detector anomaly.Detector
	history  history.Source
	metrics  *metrics.Metrics
}

// NewAnomalyService creates a new AnomalyService
func NewAnomalyService(logger *logging.Logger, detector anomaly.Detector, source history.Source, m *metrics.Metrics) *AnomalyService {
	return &AnomalyService{
		logger:   logger,
		detector: detector,
		history:  source,
		metrics:  m,
	}
}

// AnomalyRequest represents an anomaly detection request
type AnomalyRequest struct {
	StoreID    string
	ProductID  string
	WindowSize int
}

// AnomalyReport is the detection result returned to callers
type AnomalyReport struct {
	StoreID      string             `json:"store_id"`
	ProductID    string             `json:"product_id"`
	WindowSize   int                `json:"window_size"`
	Algorithm    string             `json:"algorithm"`
	AnomalyCount int                `json:"anomaly_count"`
	Anomalies    []anomaly.Anomaly  `json:"anomalies"`
	Thresholds   anomaly.Thresholds `json:"thresholds"`
}

// Validate checks the request shape
func (r *AnomalyRequest) Validate() error {
	if r.StoreID == "" {
		return validationError("store_id", "store_id is required")
	}
	if r.ProductID == "" {
		return validationError("product_id", "product_id is required")
	}
	if r.WindowSize < MinAnomalyWindow || r.WindowSize > MaxAnomalyWindow {
		return validationError("window_size",
			fmt.Sprintf("window_size must be between %d and %d, got %d", MinAnomalyWindow, MaxAnomalyWindow, r.WindowSize))
	}
	return nil
}

// Detect flags anomalies over the trailing WindowSize days of history
func (s *AnomalyService) Detect(ctx context.Context, req *AnomalyRequest) (*AnomalyReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "anomaly.detect",
		attribute.String("store_id", req.StoreID),
		attribute.String("product_id", req.ProductID),
		attribute.Int("window_size", req.WindowSize),
	)
	defer span.End()

	series, err := s.history.Series(ctx, req.StoreID, req.ProductID, req.WindowSize)
	if err != nil {
		tracing.RecordError(span, err)
		if errors.Is(err, history.ErrNotFound) {
			return nil, NewServiceErrorWithDetails(CodeNotFound, err.Error(),
				map[string]interface{}{"store_id": req.StoreID, "product_id": req.ProductID})
		}
		return nil, pipelineError(err)
	}

	report := s.detector.Detect(series.Tail(req.WindowSize))
	s.metrics.AnomaliesFound.Add(float64(report.Count()))

	s.logger.WithContext(ctx).ForSeries(req.StoreID, req.ProductID).Debug("Anomaly detection completed",
		"points", series.Len(),
		"anomalies", report.Count())

	return &AnomalyReport{
		StoreID:      req.StoreID,
		ProductID:    req.ProductID,
		WindowSize:   req.WindowSize,
		Algorithm:    s.detector.Name(),
		AnomalyCount: report.Count(),
		Anomalies:    report.Anomalies,
		Thresholds:   report.Thresholds,
	}, nil
}
