package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/ratelimit"
)

// OpsHandler exposes operational utilities gated behind the admin
// role.
type OpsHandler struct {
	Limiter *ratelimit.Limiter
}

func NewOpsHandler(limiter *ratelimit.Limiter) *OpsHandler {
	return &OpsHandler{Limiter: limiter}
}

// ResetRateLimits clears every rate limit bucket. Intended for
// incident response, e.g. after a misconfigured preset locked real
// users out.
func (h *OpsHandler) ResetRateLimits(c echo.Context) error {
	if h.Limiter == nil {
		return c.NoContent(http.StatusNoContent)
	}
	if err := h.Limiter.ResetAll(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
