package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/services"
)

// DetectAnomalies flags outliers in recent history. Parameters come from the
// JSON body, and query parameters override them.
// POST /anomaly/detect
func (h *Handler) DetectAnomalies(c *fiber.Ctx) error {
	var body models.AnomalyRequest
	if err := h.parseBody(c, &body); err != nil {
		return h.writeError(c, err)
	}

	if v := c.Query("store_id"); v != "" {
		body.StoreID = v
	}
	if v := c.Query("product_id"); v != "" {
		body.ProductID = v
	}
	if v := c.Query("window_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.writeError(c, services.NewServiceErrorWithDetails(services.CodeValidation,
				"window_size must be an integer", map[string]interface{}{"field": "window_size"}))
		}
		body.WindowSize = &n
	}

	report, err := h.anomalyService.Detect(c.UserContext(), &services.AnomalyRequest{
		StoreID:    body.StoreID,
		ProductID:  body.ProductID,
		WindowSize: models.IntOrDefault(body.WindowSize, h.defaults.WindowSize),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(report)
}
