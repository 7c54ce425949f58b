package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mobilia/admin-gateway/internal/api/metrics"
	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

// LoginPath is where guard failures and forced re-authentications navigate to.
const LoginPath = "/login"

// SessionIDKey is the echo context key under which the guard stores the
// session id for downstream handlers.
const SessionIDKey = "sid"

const resolveTimeout = 15 * time.Second

// Guard gates admin routes on the Session Record.
//
// In the default (optimistic) mode it answers synchronously from the durable
// store (token presence plus admin role) and kicks reconciliation in the
// background the first time it sees a session. A page may therefore render
// briefly off a token the upstream has already revoked; the catalog calls the
// page makes will fail with an authorization error and the retry wrapper
// evicts the session, so the next guard check catches it. In strict mode the
// guard resolves against the upstream before serving.
type Guard struct {
	store      ports.SessionStore
	controller ports.AuthController
	cookieName string
	strict     bool
	log        zerolog.Logger

	kicked sync.Map
}

func NewGuard(store ports.SessionStore, controller ports.AuthController, cookieName string, strict bool, log zerolog.Logger) *Guard {
	return &Guard{
		store:      store,
		controller: controller,
		cookieName: cookieName,
		strict:     strict,
		log:        log,
	}
}

// Middleware returns the echo middleware enforcing the guard.
func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := SessionID(c, g.cookieName)
			if sid == "" {
				return g.deny(c)
			}

			if g.strict {
				st := g.controller.Resolve(c.Request().Context(), sid)
				if st.Phase != domain.PhaseAuthenticated || !st.User.IsAdmin() {
					return g.deny(c)
				}
			} else {
				if !g.store.IsAuthenticatedAdmin(c.Request().Context(), sid) {
					return g.deny(c)
				}
				g.kickReconcile(sid)
			}

			metrics.GuardDecisionsTotal.WithLabelValues("allowed").Inc()
			c.Set(SessionIDKey, sid)
			return next(c)
		}
	}
}

// kickReconcile starts background reconciliation once per session id seen by
// this guard instance. The controller coalesces and caches resolves, so the
// goroutine is cheap even when another replica got there first.
func (g *Guard) kickReconcile(sid string) {
	if _, seen := g.kicked.LoadOrStore(sid, struct{}{}); seen {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		st := g.controller.Resolve(ctx, sid)
		switch {
		case st.Degraded:
			metrics.ReconciliationsTotal.WithLabelValues("degraded").Inc()
		case st.Phase == domain.PhaseAuthenticated:
			metrics.ReconciliationsTotal.WithLabelValues("authenticated").Inc()
		default:
			metrics.ReconciliationsTotal.WithLabelValues("anonymous").Inc()
			metrics.SessionEvictionsTotal.Inc()
			// Stale guard memory: let a fresh login trigger reconciliation
			// again for this session.
			g.kicked.Delete(sid)
		}
	}()
}

func (g *Guard) deny(c echo.Context) error {
	metrics.GuardDecisionsTotal.WithLabelValues("redirected").Inc()
	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, LoginPath)
	}
	return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
}

// wantsHTML reports whether the request is a browser navigation rather than
// an API call, so the guard can redirect instead of returning an envelope.
func wantsHTML(c echo.Context) bool {
	return c.Request().Method == http.MethodGet &&
		strings.Contains(c.Request().Header.Get("Accept"), "text/html")
}

// SessionID extracts the session id cookie, returning "" when absent.
func SessionID(c echo.Context, cookieName string) string {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}
