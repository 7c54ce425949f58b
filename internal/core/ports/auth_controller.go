package ports

import (
	"context"

	"github.com/mobilia/admin-gateway/internal/core/domain"
)

// AuthedCall is one outbound upstream call made with the session's bearer
// token.
type AuthedCall func(ctx context.Context, token string) error

// AuthController owns the canonical "who is logged in" state for each
// session, reconciling the durable Session Record against the upstream
// identity endpoint and mediating every state-changing auth operation.
type AuthController interface {
	// Resolve runs (or returns the cached result of) startup reconciliation
	// for sid: verify a persisted token upstream, refresh the snapshot on
	// success, evict on rejection, fall back to the cached snapshot on
	// transport failure. Idempotent; concurrent calls for one sid coalesce.
	Resolve(ctx context.Context, sid string) domain.AuthState

	Login(ctx context.Context, sid, identifier, password string) (*domain.User, error)
	Register(ctx context.Context, sid string, in RegisterInput) (*domain.User, error)
	// Logout is best-effort upstream and unconditional locally; it never
	// fails because the remote call did.
	Logout(ctx context.Context, sid string)

	// IsAuthenticated and IsAdmin prefer resolved in-memory state and fall
	// back to the durable store while the session is still unresolved.
	IsAuthenticated(ctx context.Context, sid string) bool
	IsAdmin(ctx context.Context, sid string) bool

	// ExecuteWithAuthRetry wraps one outbound call with a single recovery
	// pass on authorization failure: evict the session and report
	// ErrReauthRequired rather than silently replaying with the same token.
	ExecuteWithAuthRetry(ctx context.Context, sid string, call AuthedCall, maxRetries int) error
}
