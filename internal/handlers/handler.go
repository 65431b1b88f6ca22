package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/services"
)

// Defaults applied when a request omits the field
type Defaults struct {
	Horizon      int
	LookbackDays int
	WindowSize   int
}

// Handler contains all HTTP handlers
type Handler struct {
	logger   *logging.Logger
	defaults Defaults

	// Services
	forecastService    *services.ForecastService
	anomalyService     *services.AnomalyService
	trainingService    *services.TrainingService
	modelStatusService *services.ModelStatusService
	healthService      *services.HealthService
}

// Services bundles the service layer for New
type Services struct {
	Forecast    *services.ForecastService
	Anomaly     *services.AnomalyService
	Training    *services.TrainingService
	ModelStatus *services.ModelStatusService
	Health      *services.HealthService
}

// New creates a new handler instance
func New(logger *logging.Logger, svcs Services, defaults Defaults) *Handler {
	if defaults.Horizon <= 0 {
		defaults.Horizon = 14
	}
	if defaults.LookbackDays <= 0 {
		defaults.LookbackDays = 90
	}
	if defaults.WindowSize <= 0 {
		defaults.WindowSize = services.DefaultAnomalyWindow
	}

	return &Handler{
		logger:             logger,
		defaults:           defaults,
		forecastService:    svcs.Forecast,
		anomalyService:     svcs.Anomaly,
		trainingService:    svcs.Training,
		modelStatusService: svcs.ModelStatus,
		healthService:      svcs.Health,
	}
}

// statusForCode maps a service error code to an HTTP status
func statusForCode(code string) int {
	switch code {
	case services.CodeValidation:
		return fiber.StatusBadRequest
	case services.CodeNotFound:
		return fiber.StatusNotFound
	case services.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	case services.CodeRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse
func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	svcErr := services.AsServiceError(err)
	status := statusForCode(svcErr.Code)

	log := h.logger.WithContext(c.UserContext())
	if status >= fiber.StatusInternalServerError {
		log.Error("Request failed", "path", c.Path(), "method", c.Method(), "status", status, "error", err)
	} else {
		log.Debug("Request rejected", "path", c.Path(), "code", svcErr.Code, "error", err)
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: svcErr.Details,
		},
	})
}

// parseBody decodes a JSON body regardless of Content-Type. An empty body
// leaves v untouched.
func (h *Handler) parseBody(c *fiber.Ctx, v interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return services.NewServiceErrorWithDetails(services.CodeValidation, "Failed to parse JSON body",
			map[string]interface{}{"error": err.Error()})
	}
	return nil
}
