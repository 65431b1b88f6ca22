package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newErrorApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.NewNop())})
	app.Use(recover.New())
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrMethodNotAllowed })
	app.Get("/service", func(c *fiber.Ctx) error {
		return services.NewServiceErrorWithDetails(services.CodePipeline, "series too short", map[string]interface{}{"n": 2})
	})
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("disk full") })
	app.Get("/panic", func(c *fiber.Ctx) error { panic("nil map write") })
	return app
}

func errorBody(t *testing.T, app *fiber.App, path string) (int, models.ErrorDetail) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	var body models.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("invalid error body %s: %v", data, err)
	}
	return resp.StatusCode, body.Error
}

func TestErrorHandler(t *testing.T) {
	app := newErrorApp()

	status, detail := errorBody(t, app, "/fiber")
	if status != fiber.StatusMethodNotAllowed || detail.Code != services.CodeValidation {
		t.Errorf("fiber error: %d %+v", status, detail)
	}

	status, detail = errorBody(t, app, "/service")
	if status != fiber.StatusInternalServerError || detail.Message != "series too short" || detail.Details["n"] != 2.0 {
		t.Errorf("service error: %d %+v", status, detail)
	}

	status, detail = errorBody(t, app, "/plain")
	if status != fiber.StatusInternalServerError || detail.Code != services.CodePipeline || detail.Message != "disk full" {
		t.Errorf("plain error: %d %+v", status, detail)
	}
	if detail.Path != "/plain" {
		t.Errorf("path = %s", detail.Path)
	}

	status, detail = errorBody(t, app, "/panic")
	if status != fiber.StatusInternalServerError || detail.Code != services.CodePipeline {
		t.Errorf("panic: %d %+v", status, detail)
	}
}

func TestCodeForStatus(t *testing.T) {
	tests := map[int]string{
		404: services.CodeNotFound,
		429: services.CodeRateLimited,
		503: services.CodeUnavailable,
		400: services.CodeValidation,
		502: services.CodePipeline,
	}
	for status, want := range tests {
		if got := codeForStatus(status); got != want {
			t.Errorf("codeForStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	app := fiber.New()
	app.Use(Metrics(m))
	app.Get("/forecast/train/:job_id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for _, path := range []string{"/forecast/train/a", "/forecast/train/b", "/health"} {
		if _, err := app.Test(httptest.NewRequest("GET", path, nil)); err != nil {
			t.Fatalf("request failed: %v", err)
		}
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/forecast/train/:job_id", "404")); got != 2 {
		t.Errorf("route counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/health", "200")); got != 1 {
		t.Errorf("health counter = %v, want 1", got)
	}
}
