package domain

import "time"

// Audit event kinds.
const (
	AuditLogin     = "login"
	AuditRegister  = "register"
	AuditLogout    = "logout"
	AuditReconcile = "reconcile"
	AuditEvict     = "evict"
)

// AuditEvent records one auth-related action for the audit trail.
type AuditEvent struct {
	SessionID  string    `json:"session_id"`
	Kind       string    `json:"kind"`
	Identifier string    `json:"identifier,omitempty"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
