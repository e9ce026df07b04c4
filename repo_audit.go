package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type auditLogs struct {
	db *bun.DB
}

var _ Auditor = (*auditLogs)(nil)

// NewAuditLogRepository builds the append-only audit store. There is no
// update or delete path on purpose.
func NewAuditLogRepository(db *bun.DB) Auditor {
	return &auditLogs{db: db}
}

func (a *auditLogs) Record(ctx context.Context, entry *AuditLogEntry) error {
	if entry == nil {
		return nil
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err := a.db.NewInsert().Model(entry).Exec(ctx)
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (a *auditLogs) Query(ctx context.Context, filters AuditFilters) ([]*AuditLogEntry, int, error) {
	var records []*AuditLogEntry

	q := a.db.NewSelect().Model(&records)

	if filters.Action != "" {
		q = q.Where("?TableAlias.action = ?", filters.Action)
	}
	if filters.Since != nil {
		q = q.Where("?TableAlias.timestamp >= ?", filters.Since)
	}
	if filters.Until != nil {
		q = q.Where("?TableAlias.timestamp <= ?", filters.Until)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("?TableAlias.actor_email LIKE ?", pattern).
				WhereOr("?TableAlias.target_email LIKE ?", pattern).
				WhereOr("?TableAlias.details LIKE ?", pattern)
		})
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 100
	}

	total, err := q.Order("timestamp DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, wrapStoreErr(err)
	}

	return records, total, nil
}
