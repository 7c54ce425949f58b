package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mobilia/admin-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes. 503 vs 401 matters:
	// the UI distinguishes "you are logged out" from "the catalog API is
	// unreachable right now".
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return domainStatus(err, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrLoginInFlight):
		return http.StatusConflict, "a login for this session is already in progress"
	case errors.Is(err, domain.ErrReauthRequired):
		return http.StatusUnauthorized, "session expired, please log in again"
	case errors.Is(err, domain.ErrUnauthorized):
		return domainStatus(err, http.StatusUnauthorized, "authorization rejected")
	case errors.Is(err, domain.ErrUserExists):
		return domainStatus(err, http.StatusConflict, "user already exists")
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusUnauthorized, "no session"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "catalog API unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

// domainStatus prefers the upstream's own message over the generic fallback
// when the error carries one.
func domainStatus(err error, code int, fallback string) (int, string) {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.Message != "" {
		return code, ue.Message
	}
	return code, fallback
}
