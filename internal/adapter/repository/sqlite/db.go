package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	ticket_id      TEXT PRIMARY KEY,
	username       TEXT NOT NULL,
	transaction_id TEXT NOT NULL UNIQUE,
	amount         TEXT NOT NULL,
	currency       TEXT NOT NULL,
	memo           TEXT NOT NULL DEFAULT '',
	issued_at      TEXT NOT NULL,
	qr_data        TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'ISSUED' CHECK (status IN ('ISSUED', 'REDEEMED')),
	redeemed_at    TEXT,
	redeemed_by    TEXT
);`

// openDB opens the database file and applies the ticket schema.
// The pool is capped to one connection so every transaction is serialized.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, stmt := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize sqlite database: %w", err)
		}
	}

	return db, nil
}
