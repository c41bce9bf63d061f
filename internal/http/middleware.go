package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pricelens/internal/metrics"
)

const requestIDHeader = "X-Request-Id"

// requestLogger assigns a request ID, resolves handler errors through the
// app's error handler so the final status is known, then logs one line and
// records request metrics.
func requestLogger(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		c.Set(requestIDHeader, reqID)

		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()
		// c.Method and c.Path alias fasthttp's reused buffers; metric keys
		// outlive the request so they must own their bytes.
		method := utils.CopyString(c.Method())
		path := c.Path()

		metrics.RecordRequest(method, metricsPath(c, status), status, latency.Milliseconds())

		evt := logger.Info()
		if status >= fiber.StatusInternalServerError {
			evt = logger.Error()
		}
		evt = evt.
			Str("request_id", reqID).
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Int64("latency_ms", latency.Milliseconds())
		if modelVal, ok := c.Locals("llm_model").(string); ok {
			evt = evt.Str("llm_model", modelVal)
		}
		evt.Msg("request")

		return nil
	}
}

// metricsPath labels a request by its matched route pattern so the number
// of series stays bounded. Requests that matched no route share one label.
func metricsPath(c *fiber.Ctx, status int) string {
	if status == fiber.StatusNotFound || status == fiber.StatusMethodNotAllowed {
		return unmatchedRoute
	}
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		return utils.CopyString(r.Path)
	}
	return unmatchedRoute
}

const unmatchedRoute = "unmatched"

// errorHandler keeps upstream failures generic: anything that is not a
// *fiber.Error becomes a bare 500 with no domain error code.
func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error().
				Err(err).
				Interface("request_id", c.Locals("request_id")).
				Str("path", c.Path()).
				Msg("request failed")
		}

		return c.Status(code).JSON(ErrorResponse{
			Success: false,
			Error:   http.StatusText(code),
		})
	}
}
