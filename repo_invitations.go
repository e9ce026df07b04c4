package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Invitations stores pre-authorized role grants. Consumption is a
// conditional update so an invitation can be used at most once even under
// concurrent first sign-ins.
type Invitations interface {
	Create(ctx context.Context, record *Invitation) (*Invitation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error)
	FindPendingByEmail(ctx context.Context, email string) (*Invitation, error)
	Consume(ctx context.Context, email string) (*Invitation, error)
	Revoke(ctx context.Context, id uuid.UUID, revokedBy string) (*Invitation, error)
	ListPending(ctx context.Context) ([]*Invitation, error)
}

type invitations struct {
	db  *bun.DB
	now func() time.Time
}

var _ Invitations = (*invitations)(nil)

// InvitationsOption customizes the repository.
type InvitationsOption func(*invitations)

// WithInvitationsClock injects a custom clock (useful for tests).
func WithInvitationsClock(clock func() time.Time) InvitationsOption {
	return func(i *invitations) {
		if clock != nil {
			i.now = clock
		}
	}
}

// NewInvitationsRepository builds the bun-backed invitation store.
func NewInvitationsRepository(db *bun.DB, opts ...InvitationsOption) Invitations {
	repo := &invitations{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (i *invitations) Create(ctx context.Context, record *Invitation) (*Invitation, error) {
	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if existing, err := i.FindPendingByEmail(ctx, record.Email); err == nil && existing != nil {
		return nil, ErrInvitationAlreadyExists.WithMetadata(map[string]any{
			"email": record.Email,
		})
	} else if err != nil {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Token == "" {
		token, err := generateInvitationToken()
		if err != nil {
			return nil, err
		}
		record.Token = token
	}
	record.IsActive = true
	record.IsUsed = false

	if _, err := i.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, wrapStoreErr(err)
	}

	return record, nil
}

func (i *invitations) GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	record := &Invitation{}
	err := i.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvitationNotFound.WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, wrapStoreErr(err)
	}
	return record, nil
}

// FindPendingByEmail returns the active, unused, unexpired invitation for
// the email, or (nil, nil) when none exists.
func (i *invitations) FindPendingByEmail(ctx context.Context, email string) (*Invitation, error) {
	record := &Invitation{}
	err := i.db.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Where("?TableAlias.is_used = ?", false).
		Where("?TableAlias.is_active = ?", true).
		Where("?TableAlias.expires_at > ?", i.now()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, wrapStoreErr(err)
	}
	return record, nil
}

// Consume atomically marks the pending invitation for the email as used and
// returns it. Returns (nil, nil) when no pending invitation exists; first
// sign-in without an invitation is the normal case, not an error.
func (i *invitations) Consume(ctx context.Context, email string) (*Invitation, error) {
	now := i.now()

	res, err := i.db.NewUpdate().
		Model((*Invitation)(nil)).
		Set("is_used = ?", true).
		Set("used_at = ?", now).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Where("?TableAlias.is_used = ?", false).
		Where("?TableAlias.is_active = ?", true).
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if rows == 0 {
		return nil, nil
	}

	record := &Invitation{}
	err = i.db.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Where("?TableAlias.is_used = ?", true).
		Order("used_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	return record, nil
}

func (i *invitations) Revoke(ctx context.Context, id uuid.UUID, revokedBy string) (*Invitation, error) {
	record, err := i.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.IsUsed {
		return nil, ErrInvitationAlreadyUsed.WithMetadata(map[string]any{"id": id.String()})
	}

	now := i.now()
	res, err := i.db.NewUpdate().
		Model((*Invitation)(nil)).
		Set("is_active = ?", false).
		Set("revoked_by = ?", revokedBy).
		Set("revoked_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.is_used = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if rows == 0 {
		// Consumed between the read and the update.
		return nil, ErrInvitationAlreadyUsed.WithMetadata(map[string]any{"id": id.String()})
	}

	record.IsActive = false
	record.RevokedBy = &revokedBy
	record.RevokedAt = &now
	return record, nil
}

func (i *invitations) ListPending(ctx context.Context) ([]*Invitation, error) {
	var records []*Invitation
	err := i.db.NewSelect().
		Model(&records).
		Where("?TableAlias.is_used = ?", false).
		Where("?TableAlias.is_active = ?", true).
		Where("?TableAlias.expires_at > ?", i.now()).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return records, nil
}

func generateInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", wrapStoreErr(err)
	}
	return hex.EncodeToString(buf), nil
}
