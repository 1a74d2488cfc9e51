package main

import (
	"time"

	"unholygrail/internal/config"
	"unholygrail/internal/handlers"
	"unholygrail/internal/middleware"
	"unholygrail/internal/observability"
	"unholygrail/internal/repositories"
	"unholygrail/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the outside resources NewApp wires into the HTTP server.
type Dependencies struct {
	Users    repositories.UserRepository
	Notifier services.Notifier
	Metrics  *observability.Metrics
}

// NewApp builds the Fiber app and the AuthService behind it. Callers must
// call AuthService.Wait after shutting the app down.
func NewApp(cfg *config.Config, deps Dependencies) (*fiber.App, *services.AuthService) {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	authService := services.NewAuthService(
		deps.Users,
		services.NewBcryptHasher(cfg.BcryptCost),
		services.NewJWTTokenIssuer(cfg.TokenSecret),
		deps.Notifier,
		services.AuthOptions{
			ClientEndpoint:     cfg.ClientEndpoint,
			MailFrom:           cfg.MailFrom,
			NotifyTimeout:      cfg.NotifyTimeout,
			RotateTokenOnReset: cfg.RotateTokenOnReset,
			Metrics:            metrics,
		},
	)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New(fiber.Config{
		AppName:      "unholygrail",
		ErrorHandler: handlers.ErrorHandler,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.Prometheus(metrics))

	// --- API Routes ---
	api := app.Group("/api")
	authHandler.RegisterRoutes(api)

	// --- Operational Endpoints ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return app, authService
}
