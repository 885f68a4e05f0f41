package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-session/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-session/internal/auth"
	"github.com/spec-kit/marketplace-session/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Callback          *handlers.CallbackHandler
	Session           *handlers.SessionHandler
	OAuth             *handlers.OAuthHandler
	SessionMiddleware *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Get("/callback", cfg.Callback.Callback)
	authGroup.Get("/google", cfg.OAuth.Start)
	authGroup.Post("/resume", cfg.Session.Resume)
	authGroup.Get("/session", cfg.Session.Get)
	authGroup.Post("/session", cfg.Session.Adopt)
	authGroup.Post("/logout", cfg.Session.Logout)
	authGroup.Post("/broadcast", cfg.Session.Broadcast)

	seller := app.Group("/seller", cfg.SessionMiddleware.Handle, auth.RequireRole(domain.RoleSeller, domain.RoleAdmin))
	seller.Get("/identity", cfg.Session.Identity)
}
