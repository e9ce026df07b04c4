package admin

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenDB opens a sqlite-backed bun database. Use ":memory:" or a
// "file:...?cache=shared" DSN for tests and small deployments; production
// setups can hand their own *bun.DB to the repositories instead.
func OpenDB(dsn string) (*bun.DB, error) {
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to open database").
			WithCode(errors.CodeInternal)
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to reach database").
			WithCode(errors.CodeInternal)
	}

	return bun.NewDB(db, sqlitedialect.New()), nil
}

// RunMigrations executes the embedded schema migrations in lexical order.
// Statements are idempotent (CREATE TABLE IF NOT EXISTS), so re-running on
// an already-migrated database is safe.
func RunMigrations(ctx context.Context, db *bun.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "data/sql/migrations")
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to read embedded migrations")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrationsFS, "data/sql/migrations/"+name)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "unable to read migration").
				WithMetadata(map[string]any{"migration": name})
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "migration failed").
				WithMetadata(map[string]any{"migration": name})
		}
	}

	return nil
}
