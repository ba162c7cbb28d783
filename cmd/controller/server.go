package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/motion-controller/domain/diagnostic"
	"github.com/open-teleop/motion-controller/domain/teleop"
	"github.com/open-teleop/motion-controller/domain/video"
	"github.com/open-teleop/motion-controller/pkg/api"
	"github.com/open-teleop/motion-controller/pkg/config"
)

// newServer builds the HTTP API around rt.
func newServer(rt *controllerRuntime, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Open-Teleop Motion Controller",
		ErrorHandler: customErrorHandler,
	})

	// Add middleware
	if accessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	// Motion, camera and tuning changes need a token when a secret is configured.
	var protected []fiber.Handler
	if rt.cfg.Server.AuthSecret != "" {
		protected = append(protected, api.AuthMiddleware(rt.cfg.Server.AuthSecret, rt.logger))
		rt.logger.Infof("Bearer token authentication enabled on capability routes")
	}

	// Initialize domain services
	teleopService := teleop.NewTeleopService(rt.robot, rt.logger)
	videoService := video.NewVideoService(rt.robot, rt.logger)
	diagnosticService := diagnostic.NewDiagnosticService(rt.robot, rt.registry)
	rt.tuning.OnUpdate(func(cfg *config.Config) { diagnosticService.SetRobotID(cfg.RobotID) })

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "open-teleop motion controller",
			"backend": rt.cfg.Robot.Backend,
		})
	})

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// Set up API routes
	apiGroup := app.Group("/api")
	teleopService.RegisterRoutes(apiGroup, protected...)
	videoService.RegisterRoutes(apiGroup, protected...)
	apiGroup.Get("/diagnostics", diagnosticService.GetMetricsHandler)

	api.RegisterConfigRoutes(app, rt.tuning, rt.logger, protected...)
	api.RegisterHeadingRoutes(app, rt.robot, api.DefaultHeadingInterval, rt.logger, protected...)

	return app
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	return api.ErrorHandler(c, err)
}
