package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/auth"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/ratelimit"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance. Currently it exposes only a health
// check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and their
// middleware. Unauthenticated operations live under /v1/auth,
// protected endpoints under /v1. The limiter throttles the abuse
// targets (register, login, password reset) at the edge in addition
// to the per-account limits the service enforces internally; a nil
// limiter skips the edge throttling.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, svc *auth.Service, limiter *ratelimit.Limiter, presets ratelimit.Presets) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, middleware.RateLimit(limiter, "http:signup", presets.Signup))
	g.POST("/login", a.Login, middleware.RateLimit(limiter, "http:login", presets.Login))
	g.POST("/refresh", a.Refresh)
	g.POST("/verify-email/confirm", a.ConfirmEmail)
	g.POST("/password-reset/request", a.RequestPasswordReset, middleware.RateLimit(limiter, "http:reset", presets.Signup))
	g.POST("/password-reset/confirm", a.ResetPassword)

	// Protected endpoints: a valid access token is required and reads
	// are throttled per principal.
	authed := e.Group("/v1")
	authed.Use(middleware.RequireAuth(svc))
	authed.Use(middleware.RateLimit(limiter, "http:read", presets.Read))
	authed.GET("/me", a.Me)
	authed.POST("/logout", a.Logout)
	authed.POST("/verify-email/request", a.RequestEmailVerification)
}

// RegisterOps registers admin-only operational endpoints.
func RegisterOps(e *echo.Echo, o *handler.OpsHandler, svc *auth.Service) {
	g := e.Group("/v1/admin")
	g.Use(middleware.RequireAuth(svc))
	g.Use(middleware.RequireRoleOrHigher(model.RoleAdmin))
	g.POST("/ratelimit/reset", o.ResetRateLimits)
}
