package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sincitytravels/navigator/internal/config"
	"github.com/sincitytravels/navigator/internal/middleware"
	"github.com/sincitytravels/navigator/internal/observability"
	"go.uber.org/zap"
)

// ServerOptions carries everything NewApp wires into the router
type ServerOptions struct {
	Handler     *Handler
	Limiter     *middleware.RateLimiter
	RateLimits  config.RateLimitConfig
	Metrics     *observability.Collector
	Logger      *zap.Logger
	CORSOrigins string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewApp creates the fiber application with middleware and routes
func NewApp(opts ServerOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "SinCity Navigator API",
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: ErrorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(opts.Logger))
	app.Use(opts.Metrics.Middleware())

	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))

	h := opts.Handler
	limiter := opts.Limiter
	limits := opts.RateLimits
	if !limits.Enabled {
		limiter = nil
	}

	// Health and metrics are exempt from rate limiting
	app.Get("/health", h.Health)
	app.Get("/api/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))

	apiGroup := app.Group("/api")
	apiGroup.Post("/navigate", limiter.Handler("navigate", limits.Navigate), h.Navigate)
	apiGroup.Get("/pois", limiter.Handler("pois", limits.POIs), h.ListPOIs)
	apiGroup.Get("/pois/recommended", limiter.Handler("pois", limits.POIs), h.RecommendedPOIs)
	apiGroup.Get("/nearby", limiter.Handler("nearby", limits.Nearby), h.Nearby)
	apiGroup.Get("/properties", limiter.Handler("properties", limits.Default), h.ListProperties)
	apiGroup.Get("/property-distances", limiter.Handler("property-distances", limits.Default), h.PropertyDistances)
	apiGroup.Get("/distance/:a/:b", limiter.Handler("distance", limits.Default), h.Distance)
	apiGroup.Get("/route/:start/:end", limiter.Handler("route", limits.Default), h.IndoorRoute)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	return app
}
