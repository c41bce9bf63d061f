package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"pricelens/internal/config"
	"pricelens/internal/extract"
	"pricelens/internal/metrics"
)

type Server struct {
	app    *fiber.App
	config *config.Config
	logger zerolog.Logger
}

func NewServer(cfg *config.Config, svc *extract.Service, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "pricelens",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	// Request logging + metrics wrap everything, including recovered panics.
	app.Use(requestLogger(logger))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(cfg.Server.CORSOrigins),
		AllowMethods: "GET,POST,OPTIONS",
	}))

	// Inject the shared extract service for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("extractor", svc)
		return c.Next()
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "model": svc.Model()})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	registerGroqRoutes(app.Group("/groq"))

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

func registerGroqRoutes(group fiber.Router) {
	group.Post("/metadata", metadataHandler)
	group.Post("/price", priceHandler)
}

// App exposes the underlying fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	addr := s.config.Server.Addr()
	s.logger.Info().Str("addr", addr).Msg("listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func corsOrigins(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "*"
	}
	return raw
}
