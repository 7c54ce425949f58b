package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

// InflightChecker suppresses duplicate login submissions (Redis).
type InflightChecker interface {
	// Begin attempts to acquire the in-flight marker for sid. It returns
	// false when a login for sid is already running.
	Begin(ctx context.Context, sid string) (bool, error)
	End(ctx context.Context, sid string) error
}

// Options tunes the controller's local-fallback behaviour.
type Options struct {
	// LocalJWTSecret signs tokens minted for the bootstrap fallback login.
	LocalJWTSecret string
	// LocalTokenTTL bounds the lifetime of locally minted tokens.
	LocalTokenTTL time.Duration
	// BootstrapIdentifier and BootstrapPasswordHash (bcrypt) enable the
	// fallback admin login when the upstream is unreachable. Fallback is
	// disabled while either is empty.
	BootstrapIdentifier   string
	BootstrapPasswordHash string
}

type authController struct {
	store    ports.SessionStore
	identity ports.IdentityClient
	inflight InflightChecker
	audit    ports.AuditSink
	log      zerolog.Logger
	opts     Options

	mu        sync.Mutex
	states    map[string]domain.AuthState
	resolving map[string]chan struct{}
}

// NewAuthController returns an AuthController implementation.
func NewAuthController(
	store ports.SessionStore,
	identity ports.IdentityClient,
	inflight InflightChecker,
	audit ports.AuditSink,
	log zerolog.Logger,
	opts Options,
) ports.AuthController {
	if opts.LocalTokenTTL <= 0 {
		opts.LocalTokenTTL = time.Hour
	}
	return &authController{
		store:     store,
		identity:  identity,
		inflight:  inflight,
		audit:     audit,
		log:       log,
		opts:      opts,
		states:    make(map[string]domain.AuthState),
		resolving: make(map[string]chan struct{}),
	}
}

// Resolve reconciles the persisted Session Record for sid against the
// upstream identity endpoint. Authenticated results are cached in memory, so
// repeated calls with no intervening login/logout return the same state.
// Anonymous results are never cached: sids arrive from an unauthenticated
// cookie, and keeping an entry per arbitrary value would grow the map without
// bound. Degraded results are provisional: the next Resolve re-verifies the
// token instead of trusting the cached snapshot, so a session restored while
// the upstream was down is evicted once the upstream is back and rejects it.
// Concurrent resolves for the same sid coalesce onto a single upstream
// round-trip.
func (c *authController) Resolve(ctx context.Context, sid string) domain.AuthState {
	reconciled := false
	for {
		c.mu.Lock()
		if st, ok := c.states[sid]; ok {
			if !st.Degraded || reconciled {
				c.mu.Unlock()
				return st
			}
			delete(c.states, sid)
		}
		if ch, ok := c.resolving[sid]; ok {
			c.mu.Unlock()
			select {
			case <-ch:
				reconciled = true
				continue
			case <-ctx.Done():
				return domain.AuthState{Phase: domain.PhaseUnresolved}
			}
		}
		ch := make(chan struct{})
		c.resolving[sid] = ch
		c.mu.Unlock()

		st := c.reconcile(ctx, sid)

		c.mu.Lock()
		if st.Phase == domain.PhaseAuthenticated {
			c.states[sid] = st
		} else {
			delete(c.states, sid)
		}
		delete(c.resolving, sid)
		close(ch)
		c.mu.Unlock()
		return st
	}
}

func (c *authController) reconcile(ctx context.Context, sid string) domain.AuthState {
	token, err := c.store.Token(ctx, sid)
	if err != nil {
		c.log.Warn().Err(err).Str("sid", sid).Msg("session store unreadable during reconciliation")
		return domain.Anonymous()
	}
	if token == "" {
		return domain.Anonymous()
	}

	user, err := c.identity.Profile(ctx, token)
	switch {
	case err == nil:
		if updErr := c.store.UpdateUser(ctx, sid, user); updErr != nil {
			c.log.Warn().Err(updErr).Str("sid", sid).Msg("failed to refresh cached user snapshot")
		}
		c.record(sid, domain.AuditReconcile, user.Username, true, "")
		return domain.Authenticated(user)

	case errors.Is(err, domain.ErrUnauthorized):
		// The token was explicitly rejected: evict the whole record.
		if clrErr := c.store.Clear(ctx, sid); clrErr != nil {
			c.log.Error().Err(clrErr).Str("sid", sid).Msg("failed to clear rejected session")
		}
		c.record(sid, domain.AuditEvict, "", false, "token rejected")
		return domain.Anonymous()

	default:
		// Transport failure: never log the user out just because the
		// upstream is briefly unreachable.
		cached, cacheErr := c.store.User(ctx, sid)
		if cacheErr == nil && cached != nil {
			c.log.Warn().Err(err).Str("sid", sid).Msg("upstream unreachable, restoring session from cached snapshot")
			c.record(sid, domain.AuditReconcile, cached.Username, true, "stale snapshot")
			return domain.AuthenticatedStale(cached)
		}
		c.log.Warn().Err(err).Str("sid", sid).Msg("upstream unreachable and no cached snapshot")
		c.record(sid, domain.AuditReconcile, "", false, "upstream unavailable")
		return domain.Anonymous()
	}
}

func (c *authController) Login(ctx context.Context, sid, identifier, password string) (*domain.User, error) {
	if identifier == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	acquired, err := c.inflight.Begin(ctx, sid)
	switch {
	case err != nil:
		// Proceed without the marker. Releasing is tied to acquisition: a
		// failed Begin must not delete a marker another replica holds.
		c.log.Warn().Err(err).Str("sid", sid).Msg("in-flight check failed, proceeding with login")
	case !acquired:
		return nil, domain.ErrLoginInFlight
	default:
		defer func() {
			if endErr := c.inflight.End(context.WithoutCancel(ctx), sid); endErr != nil {
				c.log.Warn().Err(endErr).Str("sid", sid).Msg("failed to release in-flight marker")
			}
		}()
	}

	token, user, err := c.identity.Login(ctx, identifier, password)
	switch {
	case err == nil:
		return c.establish(ctx, sid, token, user, domain.AuditLogin)

	case errors.Is(err, domain.ErrUpstreamUnavailable):
		if user, ok := c.bootstrapLogin(sid, identifier, password); ok {
			return user, nil
		}
		c.record(sid, domain.AuditLogin, identifier, false, "upstream unavailable")
		return nil, err

	default:
		c.record(sid, domain.AuditLogin, identifier, false, err.Error())
		return nil, err
	}
}

func (c *authController) Register(ctx context.Context, sid string, in ports.RegisterInput) (*domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	token, user, err := c.identity.Register(ctx, in)
	if err != nil {
		c.record(sid, domain.AuditRegister, in.Username, false, err.Error())
		return nil, err
	}
	return c.establish(ctx, sid, token, user, domain.AuditRegister)
}

// establish makes the session live: in-memory state first so the outbound
// layer can use the token immediately, then the durable record.
func (c *authController) establish(ctx context.Context, sid, token string, user *domain.User, kind string) (*domain.User, error) {
	c.setState(sid, domain.Authenticated(user))

	if err := c.store.SetSession(ctx, sid, token, user); err != nil {
		c.setState(sid, domain.Anonymous())
		c.record(sid, kind, user.Username, false, "session persistence failed")
		return nil, fmt.Errorf("persist session: %w", err)
	}

	c.record(sid, kind, user.Username, true, "")
	c.log.Info().Str("sid", sid).Str("username", user.Username).Str("role", user.Role).Msg("session established")
	return user, nil
}

func (c *authController) Logout(ctx context.Context, sid string) {
	token, err := c.store.Token(ctx, sid)
	if err != nil {
		c.log.Warn().Err(err).Str("sid", sid).Msg("session store unreadable during logout")
	}
	if token != "" {
		// Best-effort: the upstream not acknowledging the logout must not
		// block local cleanup.
		if err := c.identity.Logout(ctx, token); err != nil {
			c.log.Warn().Err(err).Str("sid", sid).Msg("upstream logout failed")
		}
	}

	if err := c.store.Clear(ctx, sid); err != nil {
		c.log.Error().Err(err).Str("sid", sid).Msg("failed to clear session")
	}
	c.setState(sid, domain.Anonymous())
	c.record(sid, domain.AuditLogout, "", true, "")
}

func (c *authController) IsAuthenticated(ctx context.Context, sid string) bool {
	if st, ok := c.resolved(sid); ok {
		return st.Phase == domain.PhaseAuthenticated
	}
	return c.store.IsAuthenticated(ctx, sid)
}

func (c *authController) IsAdmin(ctx context.Context, sid string) bool {
	if st, ok := c.resolved(sid); ok {
		return st.User.IsAdmin()
	}
	return c.store.IsAdmin(ctx, sid)
}

// bootstrapLogin mints a local admin session when the upstream is down and
// the configured bootstrap credentials match.
func (c *authController) bootstrapLogin(sid, identifier, password string) (*domain.User, bool) {
	if c.opts.BootstrapIdentifier == "" || c.opts.BootstrapPasswordHash == "" {
		return nil, false
	}
	if identifier != c.opts.BootstrapIdentifier {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(c.opts.BootstrapPasswordHash), []byte(password)) != nil {
		return nil, false
	}

	user := &domain.User{
		ID:       "bootstrap",
		Username: identifier,
		Role:     domain.RoleAdmin,
	}
	token, err := c.mintLocalToken(user)
	if err != nil {
		c.log.Error().Err(err).Str("sid", sid).Msg("failed to mint local token")
		return nil, false
	}

	established, err := c.establish(context.Background(), sid, token, user, domain.AuditLogin)
	if err != nil {
		return nil, false
	}
	c.log.Warn().Str("sid", sid).Msg("bootstrap fallback login while upstream unreachable")
	return established, true
}

func (c *authController) mintLocalToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"iss":      "local",
		"exp":      time.Now().Add(c.opts.LocalTokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(c.opts.LocalJWTSecret))
}

// setState records an authenticated state or, for any other phase, drops the
// entry: the map only ever holds live authenticated sessions.
func (c *authController) setState(sid string, st domain.AuthState) {
	c.mu.Lock()
	if st.Phase == domain.PhaseAuthenticated {
		c.states[sid] = st
	} else {
		delete(c.states, sid)
	}
	c.mu.Unlock()
}

func (c *authController) resolved(sid string) (domain.AuthState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[sid]
	if !ok || st.Phase == domain.PhaseUnresolved {
		return domain.AuthState{}, false
	}
	return st, true
}

func (c *authController) record(sid, kind, identifier string, success bool, reason string) {
	if c.audit == nil {
		return
	}
	c.audit.Enqueue(&domain.AuditEvent{
		SessionID:  sid,
		Kind:       kind,
		Identifier: identifier,
		Success:    success,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
	})
}
