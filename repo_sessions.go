package admin

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the durable session table behind the registry. Touch is a
// single conditional update so a session removed by invalidation can never
// be refreshed afterwards: the row is simply gone and the update matches
// nothing.
type Sessions interface {
	Insert(ctx context.Context, record *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	TouchIf(ctx context.Context, id string, now, minCreatedAt, minLastAccess time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context, minCreatedAt, minLastAccess time.Time) (int, error)
}

type sessions struct {
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

// NewSessionsRepository builds the bun-backed session table.
func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db}
}

func (s *sessions) Insert(ctx context.Context, record *Session) error {
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (s *sessions) Get(ctx context.Context, id string) (*Session, error) {
	record := &Session{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, wrapStoreErr(err)
	}
	return record, nil
}

// TouchIf refreshes last_accessed_at only when the row still exists and is
// inside both expiry bounds. Returns false when nothing matched.
func (s *sessions) TouchIf(ctx context.Context, id string, now, minCreatedAt, minLastAccess time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("last_accessed_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.created_at > ?", minCreatedAt).
		Where("?TableAlias.last_accessed_at > ?", minLastAccess).
		Exec(ctx)
	if err != nil {
		return false, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreErr(err)
	}

	return rows > 0, nil
}

func (s *sessions) Delete(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (s *sessions) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	res, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return 0, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStoreErr(err)
	}

	return int(rows), nil
}

func (s *sessions) DeleteExpired(ctx context.Context, minCreatedAt, minLastAccess time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*Session)(nil)).
		WhereGroup(" AND ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.
				WhereOr("?TableAlias.created_at <= ?", minCreatedAt).
				WhereOr("?TableAlias.last_accessed_at <= ?", minLastAccess)
		}).
		Exec(ctx)
	if err != nil {
		return 0, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStoreErr(err)
	}

	return int(rows), nil
}
