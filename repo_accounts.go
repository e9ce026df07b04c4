package admin

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?
WHERE (
	"acc"."id" = ?
) RETURNING *;`

// StatusChange carries the provenance recorded with a status transition.
type StatusChange struct {
	To      AccountStatus
	Actor   string
	At      time.Time
	Reason  string
	EndDate *time.Time // suspension only; nil means permanent
}

// RoleChange carries the provenance recorded with a role transition.
type RoleChange struct {
	To        Role
	Actor     string
	At        time.Time
	Promotion bool
}

// AccountFilters narrows an account listing. Zero values are ignored.
type AccountFilters struct {
	Role   Role
	Status AccountStatus
	Search string
	Page   int
	Limit  int
}

// Accounts is the account store. Status and role mutations are conditional
// writes keyed on the expected prior value so concurrent transitions cannot
// both succeed.
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetOrCreate(ctx context.Context, record *Account) (*Account, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	List(ctx context.Context, filters AccountFilters) ([]*Account, int, error)
	CountByRole(ctx context.Context, role Role) (int, error)

	UpdateStatusChecked(ctx context.Context, id uuid.UUID, expected AccountStatus, change StatusChange) (*Account, error)
	UpdateRoleChecked(ctx context.Context, id uuid.UUID, expected Role, change RoleChange) (*Account, error)

	LinkProvider(ctx context.Context, id uuid.UUID, provider, providerID string) error
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository builds the bun-backed account store.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetAccountPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, wrapStoreErr(err)
	}

	record.EnsureStatus()
	record.EnsureRole()
	return record, nil
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.WithMetadata(map[string]any{"email": email})
		}
		return nil, wrapStoreErr(err)
	}

	record.EnsureStatus()
	record.EnsureRole()
	return record, nil
}

func (a *accounts) GetOrCreate(ctx context.Context, record *Account) (*Account, error) {
	return a.GetOrCreateTx(ctx, a.db, record)
}

func (a *accounts) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	identifier := record.Email
	if record.ID != uuid.Nil {
		identifier = record.ID.String()
	}

	existing, err := a.Repository.GetByIdentifierTx(ctx, tx, identifier)
	if err == nil {
		existing.EnsureStatus()
		existing.EnsureRole()
		return existing, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *accounts) List(ctx context.Context, filters AccountFilters) ([]*Account, int, error) {
	var records []*Account

	q := a.db.NewSelect().Model(&records)

	if filters.Role != "" {
		q = q.Where("?TableAlias.role = ?", filters.Role)
	}
	if filters.Status != "" {
		q = q.Where("?TableAlias.status = ?", filters.Status)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("?TableAlias.email LIKE ?", pattern).
				WhereOr("?TableAlias.name LIKE ?", pattern)
		})
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 50
	}

	total, err := q.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, wrapStoreErr(err)
	}

	for _, record := range records {
		record.EnsureStatus()
		record.EnsureRole()
	}

	return records, total, nil
}

func (a *accounts) CountByRole(ctx context.Context, role Role) (int, error) {
	count, err := a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.role = ?", role).
		Count(ctx)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return count, nil
}

// UpdateStatusChecked performs a compare-and-swap on the status column: the
// write applies only when the stored status still matches expected. The
// loser of a concurrent race observes ErrStaleAccountState and must not
// write an audit entry.
func (a *accounts) UpdateStatusChecked(ctx context.Context, id uuid.UUID, expected AccountStatus, change StatusChange) (*Account, error) {
	q := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("status = ?", change.To).
		Set("updated_at = ?", change.At)

	switch change.To {
	case StatusSuspended:
		q = q.Set("suspended_by = ?", change.Actor).
			Set("suspended_at = ?", change.At).
			Set("suspension_reason = ?", change.Reason).
			Set("suspension_end_date = ?", change.EndDate)
	case StatusBlocked:
		q = q.Set("blocked_by = ?", change.Actor).
			Set("blocked_at = ?", change.At).
			Set("block_reason = ?", change.Reason)
	case StatusDeleted:
		q = q.Set("deleted_by = ?", change.Actor).
			Set("deleted_at = ?", change.At).
			Set("deletion_reason = ?", change.Reason)
	case StatusActive:
		q = q.Set("reactivated_by = ?", change.Actor).
			Set("reactivated_at = ?", change.At)
		if expected == StatusDeleted {
			q = q.Set("deleted_by = NULL").
				Set("deleted_at = NULL").
				Set("deletion_reason = NULL")
		} else {
			q = q.Set("suspended_by = NULL").
				Set("suspended_at = NULL").
				Set("suspension_reason = NULL").
				Set("suspension_end_date = NULL").
				Set("blocked_by = NULL").
				Set("blocked_at = NULL").
				Set("block_reason = NULL")
		}
	}

	res, err := q.
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.status = ?", expected).
		Exec(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if rows == 0 {
		return nil, a.staleOrMissing(ctx, id, map[string]any{
			"expected_status": expected,
			"target_status":   change.To,
		})
	}

	return a.GetByID(ctx, id)
}

// UpdateRoleChecked is the role-dimension compare-and-swap.
func (a *accounts) UpdateRoleChecked(ctx context.Context, id uuid.UUID, expected Role, change RoleChange) (*Account, error) {
	q := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("role = ?", change.To).
		Set("updated_at = ?", change.At)

	if change.Promotion {
		q = q.Set("promoted_by = ?", change.Actor).
			Set("promoted_at = ?", change.At)
	} else {
		q = q.Set("demoted_by = ?", change.Actor).
			Set("demoted_at = ?", change.At)
	}

	res, err := q.
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.role = ?", expected).
		Exec(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if rows == 0 {
		return nil, a.staleOrMissing(ctx, id, map[string]any{
			"expected_role": expected,
			"target_role":   change.To,
		})
	}

	return a.GetByID(ctx, id)
}

func (a *accounts) LinkProvider(ctx context.Context, id uuid.UUID, provider, providerID string) error {
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("provider = ?", provider).
		Set("provider_id = ?", providerID).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = ?", account.LoginAttempts+1).
		Set("login_attempt_at = ?", now).
		Where("?TableAlias.id = ?", account.ID).
		Exec(ctx)
	return err
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("loggedin_at = ?", now).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("?TableAlias.id = ?", account.ID).
		Exec(ctx)
	return err
}

// staleOrMissing disambiguates a zero-row conditional write: either the
// account does not exist at all, or its state changed concurrently.
func (a *accounts) staleOrMissing(ctx context.Context, id uuid.UUID, meta map[string]any) error {
	if _, err := a.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleAccountState.WithMetadata(meta)
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.EnsureRole()
	record.EnsureStatus()
	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
