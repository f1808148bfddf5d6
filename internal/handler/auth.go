package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/auth"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
)

// AuthHandler is the REST glue over the auth core. It binds request
// bodies, delegates to the service and translates the typed domain
// errors into status codes; no business rules live here.
type AuthHandler struct {
	Svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{Svc: svc}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type emailReq struct {
	Email string `json:"email"`
}
type confirmReq struct {
	Token string `json:"token"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func pairResp(u *model.User, pair auth.TokenPair) authResp {
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
		Access:  tokenPart{Token: pair.AccessToken, Expires: pair.AccessExpires},
		Refresh: tokenPart{Token: pair.RefreshToken, Expires: pair.RefreshExpires}, // raw back to client
	}
}

// writeDomainError maps the auth error taxonomy onto HTTP statuses.
// Anything unmatched is an internal fault and stays opaque.
func writeDomainError(c echo.Context, err error) error {
	var (
		authn    *auth.AuthenticationError
		authzErr *auth.AuthorizationError
		val      *auth.ValidationError
		nf       *auth.NotFoundError
		conflict *auth.ConflictError
		rl       *auth.RateLimitError
	)
	switch {
	case errors.As(err, &authn):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": authn.Message})
	case errors.As(err, &authzErr):
		return c.JSON(http.StatusForbidden, echo.Map{"error": authzErr.Message})
	case errors.As(err, &val):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": val.Message, "fields": val.Fields})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Message})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": conflict.Message})
	case errors.As(err, &rl):
		c.Response().Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter))
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": rl.Message, "retry_after": rl.RetryAfter})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// Register: create the account and return a token pair immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	u, pair, err := h.Svc.Signup(c.Request().Context(), req.Email, req.Password, req.Name, c.RealIP())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, pairResp(u, pair))
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	u, pair, err := h.Svc.Login(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, pairResp(u, pair))
}

// Refresh: rotate the refresh token and return a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	u, pair, err := h.Svc.RefreshTokens(c.Request().Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, pairResp(u, pair))
}

// Logout: revoke all refresh tokens of the current principal.
func (h *AuthHandler) Logout(c echo.Context) error {
	p := middleware.Principal(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if err := h.Svc.Logout(c.Request().Context(), p.UserID); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: simple protected endpoint returning the verified identity.
func (h *AuthHandler) Me(c echo.Context) error {
	p := middleware.Principal(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": p.UserID,
		"email":   p.Email,
		"role":    p.Role,
	})
}

// RequestEmailVerification: issue a fresh verification token for the
// current principal. The token is returned in the response because
// mail delivery lives outside this service.
func (h *AuthHandler) RequestEmailVerification(c echo.Context) error {
	p := middleware.Principal(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	token, err := h.Svc.RequestEmailVerification(c.Request().Context(), p.UserID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// ConfirmEmail: consume a verification token.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	if err := h.Svc.ConfirmEmail(c.Request().Context(), strings.TrimSpace(req.Token)); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestPasswordReset: create a reset token for the email. Replies
// 202 whether or not the account exists.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	token, err := h.Svc.RequestPasswordReset(c.Request().Context(), req.Email, c.RealIP())
	if err != nil {
		return writeDomainError(c, err)
	}
	resp := echo.Map{"status": "accepted"}
	if token != "" {
		resp["token"] = token
	}
	return c.JSON(http.StatusAccepted, resp)
}

// ResetPassword: consume a reset token and install a new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token/password required"})
	}
	if err := h.Svc.ResetPassword(c.Request().Context(), strings.TrimSpace(req.Token), req.Password); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
