package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mobilia/admin-gateway/internal/api/metrics"
	apimw "github.com/mobilia/admin-gateway/internal/api/middleware"
	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

// CookieOptions configures the session-id cookie issued on login.
type CookieOptions struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler serves the session endpoints. The browser only ever holds the
// opaque session id; the bearer token stays inside the gateway.
type AuthHandler struct {
	controller ports.AuthController
	store      ports.SessionStore
	cookie     CookieOptions
}

func NewAuthHandler(controller ports.AuthController, store ports.SessionStore, cookie CookieOptions) *AuthHandler {
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = domain.DefaultSessionMaxAge
	}
	return &AuthHandler{controller: controller, store: store, cookie: cookie}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"   validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type authResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user,omitempty"`
}

type sessionResponse struct {
	Phase    string       `json:"phase"`
	User     *domain.User `json:"user,omitempty"`
	Degraded bool         `json:"degraded,omitempty"`
	Expired  bool         `json:"expired,omitempty"`
}

// Login authenticates against the upstream and establishes a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sid := h.sessionID(c)
	user, err := h.controller.Login(c.Request().Context(), sid, req.Identifier, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	h.setCookie(c, sid)
	return c.JSON(http.StatusOK, authResponse{Success: true, User: user})
}

// Register creates an account upstream and establishes the new identity as
// the active session, exactly as with login.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sid := h.sessionID(c)
	user, err := h.controller.Register(c.Request().Context(), sid, ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setCookie(c, sid)
	return c.JSON(http.StatusCreated, authResponse{Success: true, User: user})
}

// Logout tears down the session. Always succeeds locally, whatever the
// upstream says.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  authResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if sid := apimw.SessionID(c, h.cookie.Name); sid != "" {
		h.controller.Logout(c.Request().Context(), sid)
	}
	h.clearCookie(c)
	return c.JSON(http.StatusOK, authResponse{Success: true})
}

// Session reports the resolved auth state for the caller's session, with the
// advisory expiry flag.
//
// @Summary      Current session state
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	sid := apimw.SessionID(c, h.cookie.Name)
	if sid == "" {
		return c.JSON(http.StatusOK, sessionResponse{Phase: domain.PhaseAnonymous.String()})
	}

	st := h.controller.Resolve(c.Request().Context(), sid)
	resp := sessionResponse{
		Phase:    st.Phase.String(),
		User:     st.User,
		Degraded: st.Degraded,
	}
	if st.Phase == domain.PhaseAuthenticated {
		resp.Expired = h.store.IsExpired(c.Request().Context(), sid, h.cookie.MaxAge)
	}
	return c.JSON(http.StatusOK, resp)
}

// sessionID reuses the browser's existing session id or mints a fresh one.
func (h *AuthHandler) sessionID(c echo.Context) string {
	if sid := apimw.SessionID(c, h.cookie.Name); sid != "" {
		return sid
	}
	return uuid.NewString()
}

func (h *AuthHandler) setCookie(c echo.Context, sid string) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrLoginInFlight):
		return "inflight"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "invalid"
	}
}
