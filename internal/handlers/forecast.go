package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/services"
)

// Predict handles forecast requests
// POST /forecast/predict
func (h *Handler) Predict(c *fiber.Ctx) error {
	var body models.PredictRequest
	if err := h.parseBody(c, &body); err != nil {
		return h.writeError(c, err)
	}

	data, err := h.forecastService.Predict(c.UserContext(), &services.ForecastRequest{
		StoreID:           body.StoreID,
		ProductID:         body.ProductID,
		Horizon:           models.IntOrDefault(body.DaysAhead, h.defaults.Horizon),
		IncludeConfidence: body.IncludeConfidence,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	// Cached bytes go out unchanged
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// ModelStatus reports the deployed models
// GET /forecast/models/status
func (h *Handler) ModelStatus(c *fiber.Ctx) error {
	return c.JSON(h.modelStatusService.Status())
}
