package admin

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// LifecycleStore is the slice of the account store the lifecycle manager
// mutates through. All writes are compare-and-swap on the expected prior
// status or role.
type LifecycleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	UpdateStatusChecked(ctx context.Context, id uuid.UUID, expected AccountStatus, change StatusChange) (*Account, error)
	UpdateRoleChecked(ctx context.Context, id uuid.UUID, expected Role, change RoleChange) (*Account, error)
}

// SessionInvalidator is the slice of the session registry the lifecycle
// manager needs: revoke every live session for an account.
type SessionInvalidator interface {
	InvalidateAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

// SuspendRequest suspends an account for a number of days, or permanently
// when Duration is nil.
type SuspendRequest struct {
	Actor    string
	TargetID uuid.UUID
	Reason   string
	Duration *int // days; nil means permanent
	IP       string
}

func (r SuspendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Actor, validation.Required, is.EmailFormat),
		validation.Field(&r.TargetID, validation.Required, validation.By(validUUID)),
		validation.Field(&r.Reason, validation.Required),
		validation.Field(&r.Duration, validation.Min(1)),
	)
}

// BlockRequest blocks an account. More severe than suspension: no end date.
type BlockRequest struct {
	Actor    string
	TargetID uuid.UUID
	Reason   string
	IP       string
}

func (r BlockRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Actor, validation.Required, is.EmailFormat),
		validation.Field(&r.TargetID, validation.Required, validation.By(validUUID)),
		validation.Field(&r.Reason, validation.Required),
	)
}

// DeleteRequest soft deletes an account. The record is kept; the status is
// terminal until a restore.
type DeleteRequest struct {
	Actor    string
	TargetID uuid.UUID
	Reason   string
	IP       string
}

func (r DeleteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Actor, validation.Required, is.EmailFormat),
		validation.Field(&r.TargetID, validation.Required, validation.By(validUUID)),
		validation.Field(&r.Reason, validation.Required),
	)
}

// ReactivateRequest lifts a suspension or block.
type ReactivateRequest struct {
	Actor    string
	TargetID uuid.UUID
	IP       string
}

func (r ReactivateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Actor, validation.Required, is.EmailFormat),
		validation.Field(&r.TargetID, validation.Required, validation.By(validUUID)),
	)
}

// RestoreRequest brings a soft-deleted account back. Reason is optional.
type RestoreRequest struct {
	Actor    string
	TargetID uuid.UUID
	Reason   string
	IP       string
}

func (r RestoreRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Actor, validation.Required, is.EmailFormat),
		validation.Field(&r.TargetID, validation.Required, validation.By(validUUID)),
	)
}

// PromoteRequest raises a regular user to admin or super admin.
type PromoteRequest struct {
	Actor    string
	TargetID uuid.UUID
	NewRole  Role
	IP       string
}

func (r PromoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Actor, validation.Required, is.EmailFormat),
		validation.Field(&r.TargetID, validation.Required, validation.By(validUUID)),
		validation.Field(&r.NewRole, validation.Required, validation.In(RoleAdmin, RoleSuperAdmin)),
	)
}

// DemoteRequest reduces an admin or super admin to a regular user. The
// target is keyed by email, matching the administrative surface.
type DemoteRequest struct {
	Actor       string
	TargetEmail string
	IP          string
}

func (r DemoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Actor, validation.Required, is.EmailFormat),
		validation.Field(&r.TargetEmail, validation.Required, is.EmailFormat),
	)
}

// LifecycleManager owns every administrative account transition. Each
// operation resolves the actor, checks the permission matrix and the state
// machine, applies a conditional store write, revokes sessions where the
// account leaves active, and records one audit entry, in that order. A
// failed write produces no audit entry.
type LifecycleManager interface {
	Suspend(ctx context.Context, req SuspendRequest) (*Account, error)
	Block(ctx context.Context, req BlockRequest) (*Account, error)
	Delete(ctx context.Context, req DeleteRequest) (*Account, error)
	Reactivate(ctx context.Context, req ReactivateRequest) (*Account, error)
	Restore(ctx context.Context, req RestoreRequest) (*Account, error)
	Promote(ctx context.Context, req PromoteRequest) (*Account, error)
	Demote(ctx context.Context, req DemoteRequest) (*Account, error)
}

type lifecycleManager struct {
	store    LifecycleStore
	sessions SessionInvalidator
	audit    AuditRecorder
	machine  *AccountStateMachine
	now      func() time.Time
	logger   Logger
	metrics  *Metrics
}

var _ LifecycleManager = (*lifecycleManager)(nil)

// LifecycleOption customizes the lifecycle manager.
type LifecycleOption func(*lifecycleManager)

// WithLifecycleClock injects a custom clock (useful for tests).
func WithLifecycleClock(clock func() time.Time) LifecycleOption {
	return func(m *lifecycleManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithLifecycleLogger overrides the default logger.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(m *lifecycleManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLifecycleMetrics attaches per-action counters.
func WithLifecycleMetrics(metrics *Metrics) LifecycleOption {
	return func(m *lifecycleManager) {
		m.metrics = metrics
	}
}

// NewLifecycleManager wires the manager over its three collaborators.
func NewLifecycleManager(store LifecycleStore, sessions SessionInvalidator, audit AuditRecorder, opts ...LifecycleOption) LifecycleManager {
	m := &lifecycleManager{
		store:    store,
		sessions: sessions,
		audit:    audit,
		machine:  NewAccountStateMachine(),
		now:      time.Now,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m *lifecycleManager) Suspend(ctx context.Context, req SuspendRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid request").WithCode(errors.CodeBadRequest)
	}

	actor, err := m.store.GetByEmail(ctx, req.Actor)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	target, err := m.store.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}

	// Suspending another admin takes super admin.
	if target.Role.IsAdmin() && actor.Role != RoleSuperAdmin {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"target_role": target.Role,
		})
	}

	if err := m.machine.EnsureTransition(target.Status, StatusSuspended); err != nil {
		return nil, err
	}

	now := m.now()
	var endDate *time.Time
	if req.Duration != nil {
		t := now.Add(time.Duration(*req.Duration) * 24 * time.Hour)
		endDate = &t
	}

	updated, err := m.store.UpdateStatusChecked(ctx, target.ID, target.Status, StatusChange{
		To:      StatusSuspended,
		Actor:   actor.Email,
		At:      now,
		Reason:  req.Reason,
		EndDate: endDate,
	})
	if err != nil {
		return nil, err
	}

	if err := m.sessions.InvalidateAllForAccount(ctx, updated.ID); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("User suspended. Reason: %s (Permanent)", req.Reason)
	if req.Duration != nil {
		details = fmt.Sprintf("User suspended. Reason: %s, Duration: %d days", req.Reason, *req.Duration)
	}

	return m.finish(ctx, updated, "suspend", NewAuditEntry(AuditUserSuspended, details).
		WithActor(actor.Email).
		WithTarget(updated.Email).
		WithIP(req.IP))
}

func (m *lifecycleManager) Block(ctx context.Context, req BlockRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid request").WithCode(errors.CodeBadRequest)
	}

	actor, err := m.store.GetByEmail(ctx, req.Actor)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	target, err := m.store.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}

	if target.Role.IsAdmin() && actor.Role != RoleSuperAdmin {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"target_role": target.Role,
		})
	}

	if err := m.machine.EnsureTransition(target.Status, StatusBlocked); err != nil {
		return nil, err
	}

	updated, err := m.store.UpdateStatusChecked(ctx, target.ID, target.Status, StatusChange{
		To:     StatusBlocked,
		Actor:  actor.Email,
		At:     m.now(),
		Reason: req.Reason,
	})
	if err != nil {
		return nil, err
	}

	if err := m.sessions.InvalidateAllForAccount(ctx, updated.ID); err != nil {
		return nil, err
	}

	return m.finish(ctx, updated, "block", NewAuditEntry(AuditUserBlocked, fmt.Sprintf("User blocked. Reason: %s", req.Reason)).
		WithActor(actor.Email).
		WithTarget(updated.Email).
		WithIP(req.IP))
}

func (m *lifecycleManager) Delete(ctx context.Context, req DeleteRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid request").WithCode(errors.CodeBadRequest)
	}

	actor, err := m.store.GetByEmail(ctx, req.Actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleSuperAdmin {
		return nil, ErrForbidden
	}

	target, err := m.store.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}

	if target.ID == actor.ID {
		return nil, ErrSelfDeletion
	}

	if err := m.machine.EnsureTransition(target.Status, StatusDeleted); err != nil {
		return nil, err
	}

	updated, err := m.store.UpdateStatusChecked(ctx, target.ID, target.Status, StatusChange{
		To:     StatusDeleted,
		Actor:  actor.Email,
		At:     m.now(),
		Reason: req.Reason,
	})
	if err != nil {
		return nil, err
	}

	if err := m.sessions.InvalidateAllForAccount(ctx, updated.ID); err != nil {
		return nil, err
	}

	return m.finish(ctx, updated, "delete", NewAuditEntry(AuditUserDeleted, fmt.Sprintf("User soft deleted. Reason: %s", req.Reason)).
		WithActor(actor.Email).
		WithTarget(updated.Email).
		WithIP(req.IP))
}

func (m *lifecycleManager) Reactivate(ctx context.Context, req ReactivateRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid request").WithCode(errors.CodeBadRequest)
	}

	actor, err := m.store.GetByEmail(ctx, req.Actor)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	target, err := m.store.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}

	// Deleted accounts come back through Restore, which is gated on super
	// admin; reactivate only lifts suspensions and blocks.
	if target.Status == StatusDeleted {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   target.Status,
			"to":     StatusActive,
			"reason": "deleted accounts require restore",
		})
	}

	if err := m.machine.EnsureTransition(target.Status, StatusActive); err != nil {
		return nil, err
	}

	updated, err := m.store.UpdateStatusChecked(ctx, target.ID, target.Status, StatusChange{
		To:    StatusActive,
		Actor: actor.Email,
		At:    m.now(),
	})
	if err != nil {
		return nil, err
	}

	return m.finish(ctx, updated, "reactivate", NewAuditEntry(AuditUserReactivated, "User account reactivated").
		WithActor(actor.Email).
		WithTarget(updated.Email).
		WithIP(req.IP))
}

func (m *lifecycleManager) Restore(ctx context.Context, req RestoreRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid request").WithCode(errors.CodeBadRequest)
	}

	actor, err := m.store.GetByEmail(ctx, req.Actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleSuperAdmin {
		return nil, ErrForbidden
	}

	target, err := m.store.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}

	if target.Status != StatusDeleted {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   target.Status,
			"to":     StatusActive,
			"reason": "only deleted accounts can be restored",
		})
	}

	updated, err := m.store.UpdateStatusChecked(ctx, target.ID, StatusDeleted, StatusChange{
		To:    StatusActive,
		Actor: actor.Email,
		At:    m.now(),
	})
	if err != nil {
		return nil, err
	}

	details := "User account restored"
	if req.Reason != "" {
		details = fmt.Sprintf("User account restored. Reason: %s", req.Reason)
	}

	return m.finish(ctx, updated, "restore", NewAuditEntry(AuditUserRestored, details).
		WithActor(actor.Email).
		WithTarget(updated.Email).
		WithIP(req.IP))
}

func (m *lifecycleManager) Promote(ctx context.Context, req PromoteRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid request").WithCode(errors.CodeBadRequest)
	}

	actor, err := m.store.GetByEmail(ctx, req.Actor)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if req.NewRole == RoleSuperAdmin && actor.Role != RoleSuperAdmin {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"new_role": req.NewRole,
		})
	}

	target, err := m.store.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}

	if target.ID == actor.ID && req.NewRole == RoleSuperAdmin {
		return nil, ErrSelfEscalation
	}

	// Promote applies to regular users only; admins move between tiers via
	// demote and a fresh promote.
	if target.Role != RoleUser {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   target.Role,
			"to":     req.NewRole,
			"reason": "only regular users can be promoted",
		})
	}

	oldRole := target.Role
	updated, err := m.store.UpdateRoleChecked(ctx, target.ID, oldRole, RoleChange{
		To:        req.NewRole,
		Actor:     actor.Email,
		At:        m.now(),
		Promotion: true,
	})
	if err != nil {
		return nil, err
	}

	return m.finish(ctx, updated, "promote", NewAuditEntry(AuditUserPromoted, fmt.Sprintf("User promoted from %s to %s", oldRole, req.NewRole)).
		WithActor(actor.Email).
		WithTarget(updated.Email).
		WithRole(req.NewRole).
		WithIP(req.IP))
}

func (m *lifecycleManager) Demote(ctx context.Context, req DemoteRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid request").WithCode(errors.CodeBadRequest)
	}

	actor, err := m.store.GetByEmail(ctx, req.Actor)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	target, err := m.store.GetByEmail(ctx, req.TargetEmail)
	if err != nil {
		return nil, err
	}

	if target.Role == RoleSuperAdmin && actor.Role != RoleSuperAdmin {
		return nil, ErrForbidden.WithMetadata(map[string]any{
			"target_role": target.Role,
		})
	}

	if target.Role == RoleUser {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   target.Role,
			"to":     RoleUser,
			"reason": "already a regular user",
		})
	}

	// The system must always retain at least one super admin.
	if target.ID == actor.ID && target.Role == RoleSuperAdmin {
		count, err := m.store.CountByRole(ctx, RoleSuperAdmin)
		if err != nil {
			return nil, err
		}
		if count <= 1 {
			return nil, ErrLastSuperAdmin
		}
	}

	oldRole := target.Role
	updated, err := m.store.UpdateRoleChecked(ctx, target.ID, oldRole, RoleChange{
		To:        RoleUser,
		Actor:     actor.Email,
		At:        m.now(),
		Promotion: false,
	})
	if err != nil {
		return nil, err
	}

	return m.finish(ctx, updated, "demote", NewAuditEntry(AuditUserDemoted, fmt.Sprintf("User demoted from %s to user", oldRole)).
		WithActor(actor.Email).
		WithTarget(updated.Email).
		WithRole(RoleUser).
		WithIP(req.IP))
}

// finish records the audit entry for an applied mutation. It runs after the
// store write and any session invalidation, so an audit entry never refers
// to a change that did not durably happen.
func (m *lifecycleManager) finish(ctx context.Context, updated *Account, action string, entry *AuditLogEntry) (*Account, error) {
	if err := m.audit.Record(ctx, entry); err != nil {
		// The mutation is already durable. Surface the failure loudly; the
		// caller must not treat the operation as cleanly completed.
		m.logger.Error("audit write failed after applied mutation",
			"action", action, "target", updated.Email, "error", err)
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.LifecycleAction(action)
	}

	m.logger.Info("lifecycle action applied",
		"action", action, "target", updated.Email, "status", updated.Status, "role", updated.Role)

	return updated, nil
}

func validUUID(value any) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
}
