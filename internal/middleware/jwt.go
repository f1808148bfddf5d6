package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/auth-service/internal/auth"
)

// principalKey is the echo context key holding the verified
// *auth.Principal for the request.
const principalKey = "principal"

// RequireAuth returns an Echo middleware that validates the Bearer
// access token through the auth service and injects the resulting
// principal into the request context. Handlers downstream read it
// back with Principal(c). The error body stays generic regardless of
// why verification failed.
func RequireAuth(svc *auth.Service) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            header := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(header, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(header, "Bearer ")

            p, err := svc.VerifyAccessToken(raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
            }

            c.Set(principalKey, p)
            return next(c)
        }
    }
}

// Principal returns the authenticated principal stored by
// RequireAuth, or nil when the request is anonymous.
func Principal(c echo.Context) *auth.Principal {
    if v := c.Get(principalKey); v != nil {
        if p, ok := v.(*auth.Principal); ok {
            return p
        }
    }
    return nil
}
