package services

import (
	"context"
	"testing"

	"github.com/pifses/mlpipeline/internal/analytics"
	"github.com/pifses/mlpipeline/internal/analytics/anomaly"
	"github.com/pifses/mlpipeline/internal/history"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSource(series analytics.Series) history.Source {
	return sourceFunc(func(_ context.Context, _, _ string, days int) (analytics.Series, error) {
		return series.Clone(), nil
	})
}

func TestAnomalyService_DetectsOutlier(t *testing.T) {
	m := metrics.New()
	source := fixedSource(analytics.Series{10, 11, 10, 12, 11, 10, 100, 11, 10, 12})
	svc := NewAnomalyService(logging.NewNop(), anomaly.NewIQRDetector(1.5), source, m)

	report, err := svc.Detect(context.Background(), &AnomalyRequest{StoreID: "S1", ProductID: "P1", WindowSize: 30})
	require.NoError(t, err)

	require.Equal(t, 1, report.AnomalyCount)
	assert.Equal(t, 6, report.Anomalies[0].Index)
	assert.Equal(t, 100.0, report.Anomalies[0].Value)
	assert.Equal(t, anomaly.SeverityHigh, report.Anomalies[0].Severity)
	assert.Equal(t, "iqr", report.Algorithm)
	assert.Less(t, report.Thresholds.Upper, 100.0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnomaliesFound))
}

func TestAnomalyService_WindowSelectsTail(t *testing.T) {
	// The spike sits outside the trailing five points
	source := fixedSource(analytics.Series{500, 10, 11, 10, 12, 11})
	svc := NewAnomalyService(logging.NewNop(), anomaly.NewIQRDetector(1.5), source, metrics.New())

	report, err := svc.Detect(context.Background(), &AnomalyRequest{StoreID: "S1", ProductID: "P1", WindowSize: 5})
	require.NoError(t, err)
	assert.Zero(t, report.AnomalyCount)
	assert.NotNil(t, report.Anomalies, "an empty result encodes as [] not null")
}

func TestAnomalyService_SyntheticWindow(t *testing.T) {
	svc := NewAnomalyService(logging.NewNop(), anomaly.NewIQRDetector(0), history.NewSynthetic(42), metrics.New())

	report, err := svc.Detect(context.Background(), &AnomalyRequest{StoreID: "S1", ProductID: "P1", WindowSize: 30})
	require.NoError(t, err)
	for _, a := range report.Anomalies {
		assert.Less(t, a.Index, 30)
	}
}

func TestAnomalyService_Validation(t *testing.T) {
	svc := NewAnomalyService(logging.NewNop(), anomaly.NewIQRDetector(1.5), history.NewSynthetic(42), metrics.New())

	tests := []struct {
		name string
		req  AnomalyRequest
	}{
		{"missing store", AnomalyRequest{ProductID: "P1", WindowSize: 30}},
		{"missing product", AnomalyRequest{StoreID: "S1", WindowSize: 30}},
		{"zero window", AnomalyRequest{StoreID: "S1", ProductID: "P1", WindowSize: 0}},
		{"window too large", AnomalyRequest{StoreID: "S1", ProductID: "P1", WindowSize: 366}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Detect(context.Background(), &tt.req)
			require.Error(t, err)
			assert.Equal(t, CodeValidation, AsServiceError(err).Code)
		})
	}
}

func TestAnomalyService_HistoryNotFound(t *testing.T) {
	source := sourceFunc(func(context.Context, string, string, int) (analytics.Series, error) {
		return nil, history.ErrNotFound
	})
	svc := NewAnomalyService(logging.NewNop(), anomaly.NewIQRDetector(1.5), source, metrics.New())

	_, err := svc.Detect(context.Background(), &AnomalyRequest{StoreID: "S1", ProductID: "P1", WindowSize: 30})
	assert.Equal(t, CodeNotFound, AsServiceError(err).Code)
}
