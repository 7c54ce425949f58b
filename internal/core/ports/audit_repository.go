package ports

import (
	"context"

	"github.com/mobilia/admin-gateway/internal/core/domain"
)

// AuditRepository persists the auth audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
	// FindBySession returns the most recent events for a session, newest
	// first, capped at limit.
	FindBySession(ctx context.Context, sid string, limit int64) ([]*domain.AuditEvent, error)
}

// AuditSink accepts audit events for asynchronous persistence.
type AuditSink interface {
	Enqueue(event *domain.AuditEvent)
}
