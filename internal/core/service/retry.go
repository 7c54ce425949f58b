package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

// ExecuteWithAuthRetry runs call with the session's bearer token and at most
// one recovery pass on an authorization failure.
//
// The session is validated against the identity endpoint before the first
// attempt; a token the upstream explicitly rejects is evicted up front. When
// call itself fails with an authorization-class error, recovery is the same
// eviction: there is no refresh-token endpoint, so the policy is fail fast
// and force re-login, never a silent replay with the same token. Transport
// failures during pre-validation do not block the call, and any
// non-authorization error from call propagates immediately.
func (c *authController) ExecuteWithAuthRetry(ctx context.Context, sid string, call ports.AuthedCall, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	token, err := c.store.Token(ctx, sid)
	if err != nil {
		return fmt.Errorf("read session token: %w", err)
	}
	if token == "" {
		return domain.ErrReauthRequired
	}

	// Pre-flight validation. Only an explicit rejection counts: an
	// unreachable upstream would fail the call anyway and must not evict.
	if _, err := c.identity.Profile(ctx, token); errors.Is(err, domain.ErrUnauthorized) {
		c.evict(ctx, sid, "pre-flight token rejection")
		return domain.ErrReauthRequired
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = call(ctx, token)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, domain.ErrUnauthorized) {
			return lastErr
		}
		if attempt >= maxRetries {
			return lastErr
		}

		// Recovery: evict and see whether a usable session remains. Without
		// a refresh mechanism it never does, so this terminates the call and
		// sends the user back through login.
		c.evict(ctx, sid, "authorization failure during call")
		token, err = c.store.Token(ctx, sid)
		if err != nil || token == "" {
			return fmt.Errorf("%w: %w", domain.ErrReauthRequired, lastErr)
		}
	}
}

// evict clears the durable record and marks the in-memory state anonymous.
func (c *authController) evict(ctx context.Context, sid, reason string) {
	if err := c.store.Clear(ctx, sid); err != nil {
		c.log.Error().Err(err).Str("sid", sid).Msg("failed to clear session during eviction")
	}
	c.setState(sid, domain.Anonymous())
	c.record(sid, domain.AuditEvict, "", false, reason)
	c.log.Info().Str("sid", sid).Str("reason", reason).Msg("session evicted")
}
