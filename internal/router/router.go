package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unza-cs/grading-api/internal/config"
	"github.com/unza-cs/grading-api/internal/handler"
	"github.com/unza-cs/grading-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SchemaHandler  *handler.SchemaHandler
	VariantHandler *handler.VariantHandler
	ReportHandler  *handler.ReportHandler
	GradeHandler   *handler.GradeHandler
	JWTMiddleware  fiber.Handler
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

	// Variant lookup is open to the assignment materializer; everything
	// that mutates schemas, reports, or grades requires an instructor token.
	if deps.VariantHandler != nil {
		variants := api.Group("/variants")
		deps.VariantHandler.Register(variants)
	}

	if deps.SchemaHandler != nil {
		schemas := api.Group("/schemas", jwtMiddleware)
		deps.SchemaHandler.Register(schemas)
	}

	if deps.ReportHandler != nil {
		reports := api.Group("/reports", jwtMiddleware)
		deps.ReportHandler.Register(reports)
	}

	if deps.GradeHandler != nil {
		grades := api.Group("/grades", jwtMiddleware)
		deps.GradeHandler.Register(grades)
	}
}
