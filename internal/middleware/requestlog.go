package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Locals keys set by handlers and picked up by RequestLogger
const (
	LocalRequestID = "request_id"
	LocalStartPOI  = "start_poi"
	LocalEndPOI    = "end_poi"
	LocalMode      = "trip_mode"
)

// HeaderRequestID carries the request correlation id
const HeaderRequestID = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or assigns a new one
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// header values alias the request buffer
		id := utils.CopyString(c.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalRequestID, id)
		c.Set(HeaderRequestID, id)
		return c.Next()
	}
}

// RequestLogger writes one structured entry per request and reports the
// handling time in the X-Response-Time header.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", status),
			zap.Int64("response_time_ms", elapsed.Milliseconds()),
			zap.String("ip", c.IP()),
			zap.String("user_agent", utils.CopyString(c.Get(fiber.HeaderUserAgent))),
		}
		if id, ok := c.Locals(LocalRequestID).(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		// Trip endpoints tag the request with the POI pair they served
		if s, ok := c.Locals(LocalStartPOI).(string); ok {
			fields = append(fields, zap.String("start_poi", s))
		}
		if s, ok := c.Locals(LocalEndPOI).(string); ok {
			fields = append(fields, zap.String("end_poi", s))
		}
		if s, ok := c.Locals(LocalMode).(string); ok {
			fields = append(fields, zap.String("mode", s))
		}

		c.Set("X-Response-Time", elapsed.String())

		switch {
		case status >= 500:
			logger.Error("request failed", fields...)
		case status >= 400:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request", fields...)
		}

		return err
	}
}
