package db

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var schema = map[Dialect][]string{
	SQLite: {
		`CREATE TABLE IF NOT EXISTS customers (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			email      TEXT,
			phone      TEXT,
			status     TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id INTEGER NOT NULL,
			issue       TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'open',
			priority    TEXT NOT NULL DEFAULT 'medium',
			created_at  TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_customer_id ON tickets (customer_id)`,
	},
	Postgres: {
		`CREATE TABLE IF NOT EXISTS customers (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT,
			phone      TEXT,
			status     TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id          BIGSERIAL PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			issue       TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'open',
			priority    TEXT NOT NULL DEFAULT 'medium',
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_customer_id ON tickets (customer_id)`,
	},
}

// Migrate creates the customers and tickets tables if they do not exist.
// tickets.customer_id carries no foreign key: the tool layer checks that
// the customer exists before inserting.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts, ok := schema[dialect]
	if !ok {
		return errors.Errorf("unsupported store driver %q", dialect)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply schema")
		}
	}
	logger.KV(xlog.DEBUG, "status", "migrated", "driver", dialect)
	return nil
}
