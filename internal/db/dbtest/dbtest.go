// Package dbtest opens throwaway SQLite stores for tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unclebandit/customer-support-mcp/internal/db"
)

// Open returns a migrated SQLite store in a temp dir, closed on cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{
		Dialect: db.SQLite,
		DSN:     filepath.Join(t.TempDir(), "support.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.Migrate(ctx, conn, db.SQLite))
	return conn
}
