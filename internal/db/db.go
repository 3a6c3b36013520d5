// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/internal", "db")

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Valid reports whether d is a supported dialect.
func (d Dialect) Valid() bool {
	return d == Postgres || d == SQLite
}

// Rebind converts ? placeholders to the dialect's bind style.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Config describes the store location.
type Config struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// sqlitePragmas are applied to every SQLite connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// Open connects to the store and verifies the connection.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if !cfg.Dialect.Valid() {
		return nil, errors.Errorf("unsupported store driver %q", cfg.Dialect)
	}
	if cfg.DSN == "" {
		return nil, errors.New("store DSN is required")
	}

	dsn := cfg.DSN
	if cfg.Dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(string(cfg.Dialect), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s store", cfg.Dialect)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to ping %s store", cfg.Dialect)
	}

	logger.KV(xlog.INFO, "status", "connected", "driver", cfg.Dialect)
	return db, nil
}

func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}
