// Package sqldbtest provides throwaway stores for tests.
package sqldbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
)

// NewSQLite returns a migrated in-memory SQLite store that is closed when the
// test ends. The pool is pinned to one connection: every connection to
// ":memory:" would otherwise see its own empty database.
func NewSQLite(t testing.TB) *sqldb.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_txlock=immediate")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := sqldb.New(db, sqldb.DialectSQLite, 0)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() { db.Close() })
	return store
}
