package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tokengate/auth-service/internal/api/http/handlers"
	"github.com/tokengate/auth-service/internal/auth"
	"github.com/tokengate/auth-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tokens         *handlers.TokenHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. The identity interceptor runs on every
// route; only the guards reject.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", auth.RequireRole(domain.UserRoleAdmin), cfg.Health.Metrics)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	tokenGroup := api.Group("/token")
	tokenGroup.Post("/refresh-token", cfg.Tokens.Refresh)
	tokenGroup.Post("/validate-token", cfg.Tokens.Validate)

	userGroup := api.Group("/user", auth.RequireAuthenticated())
	userGroup.Get("", cfg.Users.List)
	userGroup.Get("/id/:id", cfg.Users.GetByID)
	userGroup.Get("/username/:username", cfg.Users.GetByUsername)
	userGroup.Get("/email/:email", cfg.Users.GetByEmail)
	userGroup.Patch("/update/:id", cfg.Users.Update)
}
