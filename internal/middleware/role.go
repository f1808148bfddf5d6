package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/auth-service/internal/authz"
)

// RequireRoleOrHigher returns a middleware enforcing that the
// authenticated principal ranks at or above the given role in the
// USER < MODERATOR < ADMIN hierarchy. It assumes RequireAuth ran
// earlier in the chain; an absent principal is rejected with 401.
func RequireRoleOrHigher(role string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            p := Principal(c)
            if p == nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
            }
            if !authz.RoleAtLeast(p.Role, role) {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
