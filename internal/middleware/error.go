package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/models"
	"github.com/pifses/mlpipeline/internal/services"
)

// ErrorHandler renders errors that escape the handlers, including recovered
// panics, as an ErrorResponse.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		detail := models.ErrorDetail{
			Code:    services.CodePipeline,
			Message: "Internal Server Error",
			Path:    c.Path(),
		}

		var fe *fiber.Error
		var se *services.ServiceError
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			detail.Message = fe.Message
			detail.Code = codeForStatus(fe.Code)
		case errors.As(err, &se):
			detail.Code = se.Code
			detail.Message = se.Message
			detail.Details = se.Details
		default:
			detail.Message = err.Error()
		}

		logger.Error("Request error",
			"path", c.Path(),
			"method", c.Method(),
			"status", code,
			"error", err,
		)

		return c.Status(code).JSON(models.ErrorResponse{Error: detail})
	}
}

func codeForStatus(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return services.CodeNotFound
	case status == fiber.StatusTooManyRequests:
		return services.CodeRateLimited
	case status == fiber.StatusServiceUnavailable:
		return services.CodeUnavailable
	case status >= 400 && status < 500:
		return services.CodeValidation
	default:
		return services.CodePipeline
	}
}
