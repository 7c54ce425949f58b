package ports

import (
	"context"
	"time"

	"github.com/mobilia/admin-gateway/internal/core/domain"
)

// SessionStore persists one Session Record per browser session: bearer token,
// derived role, cached user snapshot, and login time. The token alone defines
// whether a session exists; role and user are caches that must be treated as
// invalid when the token is absent.
//
// Reads degrade to absence on malformed stored data and never surface parse
// errors; a corrupted record is equivalent to no session. Writes may fail only
// when the backing store itself is unavailable.
type SessionStore interface {
	// SetSession writes token, role derived from user.Role, the serialized
	// user snapshot, and the current login time. It also removes any legacy
	// keys left behind by earlier record layouts.
	SetSession(ctx context.Context, sid, token string, user *domain.User) error
	// UpdateUser replaces the cached snapshot and, when user.Role is set, the
	// stored role. The token is left untouched.
	UpdateUser(ctx context.Context, sid string, user *domain.User) error
	// Clear removes every Session Record field. Clearing an absent or partial
	// record is not an error.
	Clear(ctx context.Context, sid string) error

	Token(ctx context.Context, sid string) (string, error)
	User(ctx context.Context, sid string) (*domain.User, error)
	Role(ctx context.Context, sid string) (string, error)
	LoginTime(ctx context.Context, sid string) (time.Time, error)

	// IsAuthenticated reports token presence only; token validity is the
	// controller's concern.
	IsAuthenticated(ctx context.Context, sid string) bool
	IsAdmin(ctx context.Context, sid string) bool
	IsAuthenticatedAdmin(ctx context.Context, sid string) bool
	// IsExpired reports whether the session is older than maxAge, or has no
	// recorded login time. Advisory only; nothing evicts on its account.
	IsExpired(ctx context.Context, sid string, maxAge time.Duration) bool
}
