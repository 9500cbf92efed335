package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sma-results-api/internal/config"
	"github.com/noah-isme/sma-results-api/internal/handler"
	"github.com/noah-isme/sma-results-api/internal/middleware"
	"github.com/noah-isme/sma-results-api/internal/observability"
	"github.com/noah-isme/sma-results-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ResultHandler           *handler.ResultHandler
	ResultManagementHandler *handler.ResultManagementHandler
	JWTMiddleware           fiber.Handler
	SubmitRateLimiter       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ResultHandler != nil {
		exams := api.Group("/exams", jwtMiddleware, middleware.RequireRole(service.RoleTeacher, service.RoleAdmin))
		if deps.SubmitRateLimiter != nil {
			exams.Use(deps.SubmitRateLimiter)
		}
		deps.ResultHandler.RegisterSubmission(exams)

		results := api.Group("/results", jwtMiddleware)
		deps.ResultHandler.RegisterListing(results)
	}

	if deps.ResultManagementHandler != nil {
		// Role and capability checks are attached per route because the
		// teacher, officer and admin surfaces share this prefix.
		management := api.Group("/result-management", jwtMiddleware)

		officerGuard := []fiber.Handler{
			middleware.RequireRole(service.RoleExamOfficer, service.RoleAdmin),
			middleware.RequireCapability(service.CapabilityApproveResults),
		}

		deps.ResultManagementHandler.RegisterTeacher(management, middleware.RequireRole(service.RoleTeacher))
		deps.ResultManagementHandler.RegisterOfficer(management, officerGuard...)
		deps.ResultManagementHandler.RegisterAdmin(management, middleware.RequireRole(service.RoleAdmin))
	}
}
