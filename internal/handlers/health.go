package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/services"
)

// Health reports liveness, registry state and cache reachability. It always
// answers 200; degraded dependencies show up in the body only.
// GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(h.healthService.Check(c.UserContext()))
}

// NotFound renders unknown routes in the API error envelope
func (h *Handler) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    services.CodeNotFound,
			Message: "Route " + c.Method() + " " + c.Path() + " not found",
			Path:    c.Path(),
		},
	})
}
