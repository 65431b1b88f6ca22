package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/analytics/anomaly"
	"github.com/pifses/mlpipeline/internal/analytics/forecast"
	"github.com/pifses/mlpipeline/internal/cache"
	"github.com/pifses/mlpipeline/internal/config"
	"github.com/pifses/mlpipeline/internal/history"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metadata"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/queue"
	"github.com/pifses/mlpipeline/internal/services"
	"github.com/pifses/mlpipeline/internal/training"
)

type testEnv struct {
	app      *fiber.App
	registry *forecast.Registry
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.NewNop()
	cfg := config.DefaultConfig()

	fc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = fc.Close() })

	q, err := queue.NewQueue(config.QueueConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	m := metrics.New()
	registry := forecast.NewDefaultRegistry()
	source := history.NewSynthetic(42)
	jobs := training.NewJobStore(metadata.NewMemoryStore())

	h := New(logger, Services{
		Forecast: services.NewForecastService(logger, registry, forecast.DefaultEnsemble(), source, fc, m,
			services.ForecastOptions{}),
		Anomaly:     services.NewAnomalyService(logger, anomaly.NewIQRDetector(1.5), source, m),
		Training:    services.NewTrainingService(logger, jobs, q, cfg.Queue.Subject, cfg.Training, m),
		ModelStatus: services.NewModelStatusService(logger, registry, forecast.DefaultWeights(), nil),
		Health:      services.NewHealthService(registry, fc),
	}, Defaults{})

	app := fiber.New()
	app.Get("/health", h.Health)
	app.Post("/forecast/predict", h.Predict)
	app.Post("/forecast/train", h.Train)
	app.Get("/forecast/train", h.ListJobs)
	app.Get("/forecast/train/:job_id", h.GetJob)
	app.Get("/forecast/models/status", h.ModelStatus)
	app.Post("/anomaly/detect", h.DetectAnomalies)
	app.Use(h.NotFound)

	return &testEnv{app: app, registry: registry}
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return resp, data
}

func decodeError(t *testing.T, data []byte) models.ErrorDetail {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("Failed to decode error body %s: %v", data, err)
	}
	return resp.Error
}

func TestHandler_Health(t *testing.T) {
	env := setupTestApp(t)

	resp, body := doJSON(t, env.app, "GET", "/health", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status %d, got %d", fiber.StatusOK, resp.StatusCode)
	}

	var health services.HealthReport
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if health.Status != "healthy" || health.Service != "ml-pipeline" {
		t.Errorf("Unexpected health %+v", health)
	}
	if !health.ModelsLoaded || !health.CacheConnected {
		t.Errorf("Expected models loaded and cache connected: %+v", health)
	}

	env.registry.UnloadAll()
	_, body = doJSON(t, env.app, "GET", "/health", "")
	_ = json.Unmarshal(body, &health)
	if health.ModelsLoaded {
		t.Error("models_loaded must follow the registry")
	}
}

func TestHandler_NotFound(t *testing.T) {
	env := setupTestApp(t)

	resp, body := doJSON(t, env.app, "GET", "/nonexistent", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status %d, got %d", fiber.StatusNotFound, resp.StatusCode)
	}
	detail := decodeError(t, body)
	if detail.Code != "NOT_FOUND" || detail.Path != "/nonexistent" {
		t.Errorf("Unexpected error %+v", detail)
	}
}

func TestStatusForCode(t *testing.T) {
	tests := map[string]int{
		services.CodeValidation:  400,
		services.CodeNotFound:    404,
		services.CodeRateLimited: 429,
		services.CodePipeline:    500,
		services.CodeUnavailable: 503,
		"SOMETHING_ELSE":         500,
	}
	for code, want := range tests {
		if got := statusForCode(code); got != want {
			t.Errorf("statusForCode(%s) = %d, want %d", code, got, want)
		}
	}
}
