package admin

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
	UseHashid bool
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegisterAccountHandler creates an account at credential sign-up. A pending
// invitation for the email decides the initial role and is consumed inside
// the same transaction window as the create.
type RegisterAccountHandler struct {
	repo   RepositoryManager
	audit  AuditRecorder
	logger Logger
}

func NewRegisterAccountHandler(repo RepositoryManager, audit AuditRecorder) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:   repo,
		audit:  audit,
		logger: defLogger{},
	}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var invitation *Invitation

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.PasswordHash = hash
		account.Email = event.Email
		account.Name = event.Name
		account.Role = RoleUser
		account.Status = StatusActive
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				account.ID = id
			}
		}

		if invitation, err = h.repo.Invitations().Consume(ctx, event.Email); err != nil {
			return err
		}
		if invitation != nil {
			account.Role = invitation.Role
		}

		if account, err = h.repo.Accounts().GetOrCreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	if invitation != nil && h.audit != nil {
		entry := NewAuditEntry(AuditInvitationUsed, fmt.Sprintf("Admin invitation used for role: %s", invitation.Role)).
			WithActor(invitation.InvitedBy).
			WithTarget(account.Email).
			WithRole(invitation.Role).
			WithIP(event.IPAddress)

		if err := h.audit.Record(ctx, entry); err != nil {
			h.logger.Warn("failed to record invitation use", "error", err)
		}
	}

	return nil
}
