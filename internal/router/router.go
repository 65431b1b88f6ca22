package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pifses/mlpipeline/internal/config"
	"github.com/pifses/mlpipeline/internal/handlers"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/middleware"
)

const healthPath = "/health"

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, h *handlers.Handler, m *metrics.Metrics, cfg config.Config) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddlewareWithConfig(logger, logging.MiddlewareConfig{
		SkipPaths: []string{healthPath, metricsPath},
	}))
	app.Use(middleware.Metrics(m))
	app.Use(middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled, healthPath, metricsPath))

	// Probes
	app.Get(healthPath, h.Health)
	if cfg.Metrics.Enabled {
		app.Get(metricsPath, adaptor.HTTPHandler(m.Handler()))
	}

	// Forecast API, at the root and under /api/v1
	registerAPI(app, h)
	registerAPI(app.Group("/api/v1"), h)

	// 404 handler
	app.Use(h.NotFound)
}

func registerAPI(r fiber.Router, h *handlers.Handler) {
	r.Post("/forecast/predict", h.Predict)
	r.Post("/forecast/train", h.Train)
	r.Get("/forecast/train", h.ListJobs)
	r.Get("/forecast/train/:job_id", h.GetJob)
	r.Get("/forecast/models/status", h.ModelStatus)
	r.Post("/anomaly/detect", h.DetectAnomalies)
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, h *handlers.Handler, m *metrics.Metrics, cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ML Pipeline Forecaster",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, h, m, cfg)

	return app
}
