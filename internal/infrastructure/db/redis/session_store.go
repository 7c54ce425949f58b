package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

// SessionStore persists Session Records in Redis, one string key per field:
//
//	session:<sid>:token       bearer token
//	session:<sid>:role        role derived from the user snapshot
//	session:<sid>:user        user snapshot, JSON
//	session:<sid>:login_time  RFC3339 login timestamp
//
// No TTLs are set: session age is advisory and eviction happens only through
// logout or reconciliation rejection.
type SessionStore struct {
	client *redis.Client
}

// legacyKeyFormats are record layouts from earlier schema versions, removed
// on every write so stale blobs cannot shadow the current fields.
var legacyKeyFormats = []string{"auth:%s", "session:%s:blob"}

// NewSessionStore creates a SessionStore wrapping the given Redis client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) SetSession(ctx context.Context, sid, token string, user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("serialize user snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(sid, "token"), token, 0)
	pipe.Set(ctx, s.key(sid, "role"), user.Role, 0)
	pipe.Set(ctx, s.key(sid, "user"), raw, 0)
	pipe.Set(ctx, s.key(sid, "login_time"), time.Now().UTC().Format(time.RFC3339), 0)
	for _, format := range legacyKeyFormats {
		pipe.Del(ctx, fmt.Sprintf(format, sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

func (s *SessionStore) UpdateUser(ctx context.Context, sid string, user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("serialize user snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(sid, "user"), raw, 0)
	if user.Role != "" {
		pipe.Set(ctx, s.key(sid, "role"), user.Role, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update user snapshot: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, sid string) error {
	keys := []string{
		s.key(sid, "token"),
		s.key(sid, "role"),
		s.key(sid, "user"),
		s.key(sid, "login_time"),
	}
	for _, format := range legacyKeyFormats {
		keys = append(keys, fmt.Sprintf(format, sid))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}

func (s *SessionStore) Token(ctx context.Context, sid string) (string, error) {
	return s.get(ctx, s.key(sid, "token"))
}

// User returns the cached snapshot, or nil when it is absent or corrupt. A
// snapshot that no longer parses is treated as missing, never as an error.
func (s *SessionStore) User(ctx context.Context, sid string) (*domain.User, error) {
	raw, err := s.get(ctx, s.key(sid, "user"))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

func (s *SessionStore) Role(ctx context.Context, sid string) (string, error) {
	return s.get(ctx, s.key(sid, "role"))
}

func (s *SessionStore) LoginTime(ctx context.Context, sid string) (time.Time, error) {
	raw, err := s.get(ctx, s.key(sid, "login_time"))
	if err != nil || raw == "" {
		return time.Time{}, err
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Unparseable timestamp is equivalent to no login time.
		return time.Time{}, nil
	}
	return ts, nil
}

// IsAuthenticated is defined purely by token presence. Whether the token is
// still honoured upstream is the controller's concern.
func (s *SessionStore) IsAuthenticated(ctx context.Context, sid string) bool {
	token, err := s.Token(ctx, sid)
	return err == nil && token != ""
}

func (s *SessionStore) IsAdmin(ctx context.Context, sid string) bool {
	role, err := s.Role(ctx, sid)
	return err == nil && role == domain.RoleAdmin
}

func (s *SessionStore) IsAuthenticatedAdmin(ctx context.Context, sid string) bool {
	return s.IsAuthenticated(ctx, sid) && s.IsAdmin(ctx, sid)
}

func (s *SessionStore) IsExpired(ctx context.Context, sid string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = domain.DefaultSessionMaxAge
	}
	ts, err := s.LoginTime(ctx, sid)
	if err != nil || ts.IsZero() {
		return true
	}
	return time.Since(ts) > maxAge
}

// get reads one field, mapping a missing key to the empty string.
func (s *SessionStore) get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return val, nil
}

func (s *SessionStore) key(sid, field string) string {
	return fmt.Sprintf("session:%s:%s", sid, field)
}

var _ ports.SessionStore = (*SessionStore)(nil)
