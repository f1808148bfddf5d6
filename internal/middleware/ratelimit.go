package middleware

import (
    "errors"
    "fmt"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/auth-service/internal/ratelimit"
)

// RateLimit returns a middleware that consumes one point from the
// named bucket per request. Authenticated requests key by principal
// id so limits follow the account; anonymous requests key by client
// IP. On rejection the response carries 429 with a Retry-After hint.
//
// A nil limiter disables the middleware, matching how the server
// degrades when neither Redis nor the in-memory backend was set up.
func RateLimit(limiter *ratelimit.Limiter, key string, opts ratelimit.Options) echo.MiddlewareFunc {
    if limiter == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            identifier := identifierFor(c)

            err := limiter.Consume(c.Request().Context(), key, identifier, opts, 1)
            if err == nil {
                return next(c)
            }

            var rl *ratelimit.Error
            if errors.As(err, &rl) {
                secs := int(rl.RetryAfter.Seconds())
                if secs < 1 {
                    secs = 1
                }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "retry_after": secs,
                })
            }
            // Backend fault: let the request through rather than
            // turning a limiter outage into an API outage.
            c.Logger().Warnf("ratelimit: backend error for key=%s: %v", key, err)
            return next(c)
        }
    }
}

// identifierFor picks the bucket identifier for a request: the
// principal id when authenticated, the client IP otherwise.
func identifierFor(c echo.Context) string {
    if p := Principal(c); p != nil {
        return fmt.Sprintf("user:%d", p.UserID)
    }
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    return "ip:" + ip
}
