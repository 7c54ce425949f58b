package ports

import (
	"context"

	"github.com/mobilia/admin-gateway/internal/core/domain"
)

// RegisterInput carries the fields forwarded to the upstream registration
// endpoint.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IdentityClient talks to the upstream catalog API's auth endpoints. All
// errors returned by implementations are classified into the domain
// sentinels: ErrInvalidCredentials, ErrUnauthorized, ErrUpstreamUnavailable.
type IdentityClient interface {
	Login(ctx context.Context, identifier, password string) (token string, user *domain.User, err error)
	Register(ctx context.Context, in RegisterInput) (token string, user *domain.User, err error)
	// Logout notifies the upstream that the token is being abandoned.
	// Best-effort: callers ignore its error beyond logging.
	Logout(ctx context.Context, token string) error
	// Profile verifies the token against the identity endpoint and returns
	// the server's current view of the user.
	Profile(ctx context.Context, token string) (*domain.User, error)
}
