package admin

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultInvitationTTL is how long an invitation stays redeemable unless
// the message says otherwise.
const DefaultInvitationTTL = 72 * time.Hour

type InviteAdminMessage struct {
	InviterEmail string        `json:"inviter_email"`
	InviteeEmail string        `json:"invitee_email"`
	Role         Role          `json:"role"`
	TTL          time.Duration `json:"ttl"`
	IPAddress    string        `json:"ip_address"`

	OnResponse func(*Invitation)
}

func (e InviteAdminMessage) Type() string { return "admin.invite" }

// InviteAdminHandler creates a pending role grant for an email that has not
// signed in yet. Only super admins may hand out super admin grants, and an
// email that already holds admin privileges cannot be invited again.
type InviteAdminHandler struct {
	accounts    LifecycleStore
	invitations Invitations
	audit       AuditRecorder
	logger      Logger
	now         func() time.Time
}

func NewInviteAdminHandler(accounts LifecycleStore, invitations Invitations, audit AuditRecorder) *InviteAdminHandler {
	return &InviteAdminHandler{
		accounts:    accounts,
		invitations: invitations,
		audit:       audit,
		logger:      defLogger{},
		now:         time.Now,
	}
}

func (h *InviteAdminHandler) Execute(ctx context.Context, event InviteAdminMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin invitation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InviteAdminHandler) execute(ctx context.Context, event InviteAdminMessage) error {
	role := event.Role
	if role == "" {
		role = RoleAdmin
	}
	if !role.IsAdmin() {
		return goerrors.New("invitations can only grant admin roles", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"role": role})
	}

	inviter, err := h.accounts.GetByEmail(ctx, event.InviterEmail)
	if err != nil {
		return err
	}
	if !inviter.Role.IsAdmin() {
		return ErrForbidden
	}
	if role == RoleSuperAdmin && inviter.Role != RoleSuperAdmin {
		return ErrForbidden.WithMetadata(map[string]any{"role": role})
	}

	existing, err := h.accounts.GetByEmail(ctx, event.InviteeEmail)
	if err != nil && !goerrors.Is(err, ErrAccountNotFound) {
		return err
	}
	if existing != nil && existing.Role.IsAdmin() {
		return goerrors.New("account already has admin privileges", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithMetadata(map[string]any{"email": existing.Email})
	}

	ttl := event.TTL
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	expiresAt := h.now().Add(ttl)

	invitation, err := h.invitations.Create(ctx, &Invitation{
		Email:     event.InviteeEmail,
		Role:      role,
		InvitedBy: inviter.Email,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	if h.audit != nil {
		entry := NewAuditEntry(AuditInvitationCreated,
			fmt.Sprintf("Admin invitation created for role: %s, expires: %s", role, expiresAt.UTC().Format(time.RFC3339))).
			WithActor(inviter.Email).
			WithTarget(invitation.Email).
			WithRole(role).
			WithIP(event.IPAddress)

		if err := h.audit.Record(ctx, entry); err != nil {
			h.logger.Warn("failed to record invitation creation", "error", err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(invitation)
	}

	return nil
}

type RevokeInvitationMessage struct {
	ActorEmail   string `json:"actor_email"`
	InvitationID string `json:"invitation_id"`
	IPAddress    string `json:"ip_address"`

	OnResponse func(*Invitation)
}

func (e RevokeInvitationMessage) Type() string { return "admin.invitation.revoke" }

// RevokeInvitationHandler withdraws a pending grant before it is used.
type RevokeInvitationHandler struct {
	accounts    LifecycleStore
	invitations Invitations
	audit       AuditRecorder
	logger      Logger
}

func NewRevokeInvitationHandler(accounts LifecycleStore, invitations Invitations, audit AuditRecorder) *RevokeInvitationHandler {
	return &RevokeInvitationHandler{
		accounts:    accounts,
		invitations: invitations,
		audit:       audit,
		logger:      defLogger{},
	}
}

func (h *RevokeInvitationHandler) Execute(ctx context.Context, event RevokeInvitationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invitation revocation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RevokeInvitationHandler) execute(ctx context.Context, event RevokeInvitationMessage) error {
	actor, err := h.accounts.GetByEmail(ctx, event.ActorEmail)
	if err != nil {
		return err
	}
	if !actor.Role.IsAdmin() {
		return ErrForbidden
	}

	id, err := uuid.Parse(event.InvitationID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "malformed invitation id").
			WithCode(goerrors.CodeBadRequest)
	}

	invitation, err := h.invitations.Revoke(ctx, id, actor.Email)
	if err != nil {
		return err
	}

	if h.audit != nil {
		entry := NewAuditEntry(AuditInvitationRevoked,
			fmt.Sprintf("Admin invitation revoked for %s", invitation.Email)).
			WithActor(actor.Email).
			WithTarget(invitation.Email).
			WithRole(invitation.Role).
			WithIP(event.IPAddress)

		if err := h.audit.Record(ctx, entry); err != nil {
			h.logger.Warn("failed to record invitation revocation", "error", err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(invitation)
	}

	return nil
}
