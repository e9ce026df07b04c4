package admin

import (
	"context"
	"time"
)

// AuditAction enumerates the privileged actions the core records.
type AuditAction string

const (
	AuditUserSuspended     AuditAction = "USER_SUSPENDED"
	AuditUserBlocked       AuditAction = "USER_BLOCKED"
	AuditUserDeleted       AuditAction = "USER_DELETED"
	AuditUserReactivated   AuditAction = "USER_REACTIVATED"
	AuditUserRestored      AuditAction = "USER_RESTORED"
	AuditUserPromoted      AuditAction = "USER_PROMOTED"
	AuditUserDemoted       AuditAction = "USER_DEMOTED"
	AuditInvitationCreated AuditAction = "INVITATION_CREATED"
	AuditInvitationRevoked AuditAction = "INVITATION_REVOKED"
	AuditInvitationUsed    AuditAction = "INVITATION_USED"
	AuditLoginSuccess      AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailure      AuditAction = "LOGIN_FAILURE"
	AuditPasswordReset     AuditAction = "PASSWORD_RESET"
)

// AuditFilters narrows an audit log query. Zero values are ignored.
type AuditFilters struct {
	Action AuditAction
	Since  *time.Time
	Until  *time.Time
	Search string
	Page   int
	Limit  int
}

// Auditor records and queries immutable audit entries.
type Auditor interface {
	Record(ctx context.Context, entry *AuditLogEntry) error
	Query(ctx context.Context, filters AuditFilters) ([]*AuditLogEntry, int, error)
}

// AuditRecorder is the write-only side of Auditor for components that
// never query.
type AuditRecorder interface {
	Record(ctx context.Context, entry *AuditLogEntry) error
}

// NewAuditEntry builds an entry with the timestamp applied, leaving nullable
// fields unset unless provided.
func NewAuditEntry(action AuditAction, details string) *AuditLogEntry {
	return &AuditLogEntry{
		Action:    action,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// WithActor sets the acting admin's email. System-initiated actions omit it.
func (e *AuditLogEntry) WithActor(email string) *AuditLogEntry {
	if email != "" {
		e.ActorEmail = &email
	}
	return e
}

// WithTarget sets the mutated account's email.
func (e *AuditLogEntry) WithTarget(email string) *AuditLogEntry {
	if email != "" {
		e.TargetEmail = &email
	}
	return e
}

// WithRole records the role involved in a promotion, demotion, or grant.
func (e *AuditLogEntry) WithRole(role Role) *AuditLogEntry {
	if role != "" {
		r := string(role)
		e.Role = &r
	}
	return e
}

// WithIP records the requesting client address.
func (e *AuditLogEntry) WithIP(ip string) *AuditLogEntry {
	if ip != "" {
		e.IPAddress = &ip
	}
	return e
}
