package domain

import (
	"errors"
	"time"
)

// DefaultSessionMaxAge is the advisory session age after which a session is
// reported as expired. Nothing evicts an expired session automatically;
// callers opt in to the check.
const DefaultSessionMaxAge = 24 * time.Hour

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("authorization rejected")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrLoginInFlight       = errors.New("login already in progress")
	ErrReauthRequired      = errors.New("re-authentication required")
	ErrNoSession           = errors.New("no session")
	ErrUserExists          = errors.New("user already exists")
)

// UpstreamError pairs a classified sentinel with the upstream's own
// human-readable message so the API layer can surface the server's text
// instead of a generic one. Message may be empty.
type UpstreamError struct {
	Err     error
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AuthPhase is the resolution phase of a session's in-memory auth state.
type AuthPhase int

const (
	// PhaseUnresolved means reconciliation has not completed yet. Consumers
	// must not treat it as anonymous; only the durable store may be consulted
	// for a best-effort answer while in this phase.
	PhaseUnresolved AuthPhase = iota
	// PhaseAnonymous is a confirmed logged-out state.
	PhaseAnonymous
	// PhaseAuthenticated is a confirmed logged-in state carrying a user.
	PhaseAuthenticated
)

func (p AuthPhase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unresolved"
	}
}

// AuthState is the controller's view of one session. User is non-nil exactly
// when Phase is PhaseAuthenticated. Degraded marks a state that was restored
// from the cached snapshot because the upstream could not be reached; the
// session stays usable but the snapshot may be stale.
type AuthState struct {
	Phase    AuthPhase
	User     *User
	Degraded bool
}

// Anonymous is the resolved logged-out state.
func Anonymous() AuthState {
	return AuthState{Phase: PhaseAnonymous}
}

// Authenticated is the resolved logged-in state for user.
func Authenticated(user *User) AuthState {
	return AuthState{Phase: PhaseAuthenticated, User: user}
}

// AuthenticatedStale marks a session restored from cache while the upstream
// was unreachable.
func AuthenticatedStale(user *User) AuthState {
	return AuthState{Phase: PhaseAuthenticated, User: user, Degraded: true}
}
