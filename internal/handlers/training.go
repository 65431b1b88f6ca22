package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/services"
)

// Train accepts a retraining job and returns immediately
// POST /forecast/train
func (h *Handler) Train(c *fiber.Ctx) error {
	var body models.TrainRequest
	if err := h.parseBody(c, &body); err != nil {
		return h.writeError(c, err)
	}

	result, err := h.trainingService.Train(c.UserContext(), &services.TrainRequest{
		StoreID:      body.StoreID,
		ProductID:    body.ProductID,
		LookbackDays: models.IntOrDefault(body.LookbackDays, h.defaults.LookbackDays),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(result)
}

// GetJob returns a training job record
// GET /forecast/train/:job_id
func (h *Handler) GetJob(c *fiber.Ctx) error {
	job, err := h.trainingService.GetJob(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(job)
}

// ListJobs returns all training jobs
// GET /forecast/train
func (h *Handler) ListJobs(c *fiber.Ctx) error {
	jobs, err := h.trainingService.ListJobs(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(models.JobListResponse{Jobs: jobs, Count: len(jobs)})
}
