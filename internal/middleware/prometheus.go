package middleware

import (
	"errors"
	"strconv"
	"time"

	"unholygrail/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// unmatchedEndpoint labels requests that matched no route.
const unmatchedEndpoint = "unmatched"

// Prometheus records request count, latency and in-flight requests.
func Prometheus(metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()

		status := c.Response().StatusCode()
		endpoint := c.Route().Path
		if err != nil {
			// The app error handler has not written the response yet.
			status = fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
			// Fiber reports a missing route as a 404 error from the stack.
			if status == fiber.StatusNotFound {
				endpoint = unmatchedEndpoint
			}
		}
		if endpoint == "" {
			endpoint = unmatchedEndpoint
		}

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), endpoint, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), endpoint).Observe(duration)
		return err
	}
}
