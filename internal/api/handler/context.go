package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mobilia/admin-gateway/internal/api/middleware"
)

// guardedSessionID extracts the session id injected by the route guard and
// fast-fails when it is missing: presence proves the guard ran, so a blank
// value on a guarded route means the middleware chain is miswired.
func guardedSessionID(c echo.Context) (string, error) {
	sid, _ := c.Get(middleware.SessionIDKey).(string)
	if sid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return sid, nil
}
