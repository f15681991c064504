package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Logging middleware logs HTTP requests
func Logging(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// The error handler has not written the response yet
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": c.IP(),
		})
		if c.Path() == "/metrics" || c.Path() == "/health" {
			entry.Debug("HTTP request")
		} else {
			entry.Info("HTTP request")
		}

		return err
	}
}
