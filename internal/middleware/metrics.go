package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pifses/mlpipeline/internal/metrics"
)

// Metrics counts every request by method, matched route and status. The
// route pattern is used instead of the raw path to keep label cardinality
// bounded.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		if route == "" || (route == "/" && c.Path() != "/") {
			route = "unmatched"
		}
		m.ObserveRequest(c.Method(), route, status)
		return err
	}
}
