package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pifses/mlpipeline/internal/analytics/forecast"
	"github.com/pifses/mlpipeline/internal/cache"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metadata"
	"github.com/redis/go-redis/v9"
)

func TestModelStatus_Report(t *testing.T) {
	registry := forecast.NewDefaultRegistry()
	svc := NewModelStatusService(logging.NewNop(), registry, forecast.DefaultWeights(), nil)

	report := svc.Status()
	arima, ok := report.Models["arima"]
	if !ok {
		t.Fatal("arima missing from report")
	}
	if arima.Status != ModelDeployed || arima.Version != "1.0" || arima.LastRetrain != "2025-01-01T00:00:00Z" {
		t.Errorf("unexpected arima info %+v", arima)
	}
	if arima.Accuracy.MAPE != 0.15 || arima.Accuracy.RMSE != 5.2 {
		t.Errorf("unexpected arima accuracy %+v", arima.Accuracy)
	}
	if lstm := report.Models["lstm"]; lstm.Accuracy.MAPE != 0.12 || lstm.Accuracy.RMSE != 4.8 {
		t.Errorf("unexpected lstm accuracy %+v", lstm.Accuracy)
	}
	if report.EnsembleWeights["arima"] != 0.4 || report.EnsembleWeights["lstm"] != 0.6 {
		t.Errorf("unexpected weights %v", report.EnsembleWeights)
	}
	if arima.LoadedAt == nil {
		t.Error("expected loaded_at for a loaded model")
	}

	registry.Unload("lstm")
	if got := svc.Status().Models["lstm"].Status; got != ModelNotLoaded {
		t.Errorf("unloaded model status = %s", got)
	}
}

func TestModelStatus_Persist(t *testing.T) {
	store := metadata.NewMemoryStore()
	svc := NewModelStatusService(logging.NewNop(), forecast.NewDefaultRegistry(),
		forecast.Weights{Trend: 0.5, Pattern: 0.5}, store)

	if err := svc.Persist(context.Background()); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	var info ModelInfo
	if err := metadata.GetJSON(context.Background(), store, "models/lstm", &info); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if info.Status != ModelDeployed {
		t.Errorf("persisted status = %s", info.Status)
	}

	if err := NewModelStatusService(logging.NewNop(), forecast.NewDefaultRegistry(), forecast.DefaultWeights(), nil).
		Persist(context.Background()); err != nil {
		t.Errorf("Persist without a store must be a no-op: %v", err)
	}
}

func TestHealth_Check(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	fc := cache.NewRedisCacheWithClient(client, 100*time.Millisecond)
	registry := forecast.NewDefaultRegistry()
	svc := NewHealthService(registry, fc)
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	report := svc.Check(context.Background())
	if report.Status != "healthy" || report.Service != "ml-pipeline" || report.Version != "1.0.0" {
		t.Errorf("unexpected report %+v", report)
	}
	if !report.ModelsLoaded || !report.CacheConnected {
		t.Errorf("expected models and cache up: %+v", report)
	}
	if report.Timestamp != "2025-01-02T03:04:05Z" {
		t.Errorf("timestamp = %s", report.Timestamp)
	}

	mr.Close()
	registry.UnloadAll()
	report = svc.Check(context.Background())
	if report.Status != "healthy" {
		t.Errorf("status must stay healthy, got %s", report.Status)
	}
	if report.ModelsLoaded || report.CacheConnected {
		t.Errorf("expected models and cache down: %+v", report)
	}
}
