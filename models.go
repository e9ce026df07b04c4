package admin

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the principal model. Status and role are closed enums; the
// provenance field groups mirror the current status. At most one group is
// populated at a time and reactivation clears the suspension/block groups.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID           uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string        `bun:"email,notnull,unique" json:"email,omitempty"`
	Name         string        `bun:"name,notnull" json:"name,omitempty"`
	Role         Role          `bun:"role,notnull" json:"role,omitempty"`
	Status       AccountStatus `bun:"status,notnull" json:"status,omitempty"`
	Provider     string        `bun:"provider" json:"provider,omitempty"`
	ProviderID   string        `bun:"provider_id" json:"provider_id,omitempty"`
	PasswordHash string        `bun:"password_hash" json:"-"`

	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`

	SuspendedBy       *string    `bun:"suspended_by" json:"suspended_by,omitempty"`
	SuspendedAt       *time.Time `bun:"suspended_at" json:"suspended_at,omitempty"`
	SuspensionReason  *string    `bun:"suspension_reason" json:"suspension_reason,omitempty"`
	SuspensionEndDate *time.Time `bun:"suspension_end_date" json:"suspension_end_date,omitempty"`

	BlockedBy   *string    `bun:"blocked_by" json:"blocked_by,omitempty"`
	BlockedAt   *time.Time `bun:"blocked_at" json:"blocked_at,omitempty"`
	BlockReason *string    `bun:"block_reason" json:"block_reason,omitempty"`

	DeletedBy      *string    `bun:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at" json:"deleted_at,omitempty"`
	DeletionReason *string    `bun:"deletion_reason" json:"deletion_reason,omitempty"`

	PromotedBy *string    `bun:"promoted_by" json:"promoted_by,omitempty"`
	PromotedAt *time.Time `bun:"promoted_at" json:"promoted_at,omitempty"`
	DemotedBy  *string    `bun:"demoted_by" json:"demoted_by,omitempty"`
	DemotedAt  *time.Time `bun:"demoted_at" json:"demoted_at,omitempty"`

	ReactivatedBy *string    `bun:"reactivated_by" json:"reactivated_by,omitempty"`
	ReactivatedAt *time.Time `bun:"reactivated_at" json:"reactivated_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults the status for records created before the status
// column existed.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = StatusActive
	}
}

// EnsureRole defaults the role for records with no explicit role.
func (a *Account) EnsureRole() {
	if a.Role == "" {
		a.Role = RoleUser
	}
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	a.EnsureStatus()
	return a.Status == StatusActive
}

// ClearSuspension removes the suspension provenance group.
func (a *Account) ClearSuspension() {
	a.SuspendedBy = nil
	a.SuspendedAt = nil
	a.SuspensionReason = nil
	a.SuspensionEndDate = nil
}

// ClearBlock removes the block provenance group.
func (a *Account) ClearBlock() {
	a.BlockedBy = nil
	a.BlockedAt = nil
	a.BlockReason = nil
}

// ClearDeletion removes the deletion provenance group.
func (a *Account) ClearDeletion() {
	a.DeletedBy = nil
	a.DeletedAt = nil
	a.DeletionReason = nil
}

// PublicView strips credential material for admin-facing responses.
func (a *Account) PublicView() *Account {
	view := *a
	view.PasswordHash = ""
	return &view
}

// Session is one authenticated browser/client session. The registry is the
// source of truth for validity; a token's own expiry never keeps a revoked
// session alive.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`

	ID             string    `bun:"id,pk" json:"id,omitempty"`
	AccountID      uuid.UUID `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at,omitempty"`
	LastAccessedAt time.Time `bun:"last_accessed_at,notnull" json:"last_accessed_at,omitempty"`
}

// ExpiredAt reports whether the session has passed either expiry bound at
// the given instant.
func (s *Session) ExpiredAt(now time.Time, maxAge, inactivityTimeout time.Duration) bool {
	if now.Sub(s.CreatedAt) >= maxAge {
		return true
	}
	return now.Sub(s.LastAccessedAt) >= inactivityTimeout
}

// AuditLogEntry is an immutable record of a privileged action. Entries are
// append only; the core never updates or deletes them.
type AuditLogEntry struct {
	bun.BaseModel `bun:"table:audit_logs,alias:alog"`

	ID          uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Action      AuditAction `bun:"action,notnull" json:"action,omitempty"`
	ActorEmail  *string     `bun:"actor_email" json:"actor_email,omitempty"`
	TargetEmail *string     `bun:"target_email" json:"target_email,omitempty"`
	Role        *string     `bun:"role" json:"role,omitempty"`
	IPAddress   *string     `bun:"ip_address" json:"ip_address,omitempty"`
	Details     string      `bun:"details" json:"details,omitempty"`
	Timestamp   time.Time   `bun:"timestamp,notnull" json:"timestamp,omitempty"`
}

// Invitation is a pre-authorized role grant for an email, consumed at most
// once at the invited email's first sign-in. It is not a login credential.
type Invitation struct {
	bun.BaseModel `bun:"table:invitations,alias:inv"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email     string     `bun:"email,notnull" json:"email,omitempty"`
	Role      Role       `bun:"role,notnull" json:"role,omitempty"`
	InvitedBy string     `bun:"invited_by,notnull" json:"invited_by,omitempty"`
	Token     string     `bun:"token,notnull,unique" json:"-"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	IsUsed    bool       `bun:"is_used,notnull,default:false" json:"is_used,omitempty"`
	UsedAt    *time.Time `bun:"used_at" json:"used_at,omitempty"`
	IsActive  bool       `bun:"is_active,notnull,default:true" json:"is_active,omitempty"`
	RevokedBy *string    `bun:"revoked_by" json:"revoked_by,omitempty"`
	RevokedAt *time.Time `bun:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Pending reports whether the invitation can still be consumed at now.
func (i *Invitation) Pending(now time.Time) bool {
	return i.IsActive && !i.IsUsed && now.Before(i.ExpiresAt)
}

// PasswordResetStep step on password reset
type PasswordResetStep = string

const (
	// ResetUnknown is the unknown status
	ResetUnknown PasswordResetStep = "unknown"
	// ResetInit is the initial step
	ResetInit PasswordResetStep = "show-reset"
	// AccountVerification notification sent
	AccountVerification PasswordResetStep = "email-sent"
	// ChangingPassword user will change password
	ChangingPassword PasswordResetStep = "change-password"
	// ChangeFinalized processing change
	ChangeFinalized PasswordResetStep = "password-changed"
)

const (
	// ResetUnknownStatus is the unknown status
	ResetUnknownStatus = "unknown"
	// ResetRequestedStatus is the requested status
	ResetRequestedStatus = "requested"
	// ResetExpiredStatus is the expired status
	ResetExpiredStatus = "expired"
	// ResetChangedStatus is the changed status
	ResetChangedStatus = "changed"
)

// PasswordReset tracks one credential recovery request.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_reset,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     *uuid.UUID `bun:"account_id,notnull" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:has-one,join:account_id=id" json:"account,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// MarkPasswordAsReset builds the update record that closes a reset request.
func MarkPasswordAsReset(id uuid.UUID) *PasswordReset {
	r := &PasswordReset{}
	r.ID = id
	r.Status = ResetChangedStatus
	n := time.Now()
	r.ResetedAt = &n
	return r
}
