package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=cinexpo sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	ticket_id      UUID PRIMARY KEY,
	username       TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	amount         NUMERIC NOT NULL,
	currency       TEXT NOT NULL,
	memo           TEXT NOT NULL DEFAULT '',
	issued_at      TIMESTAMPTZ NOT NULL,
	qr_data        TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'ISSUED' CHECK (status IN ('ISSUED', 'REDEEMED')),
	redeemed_at    TIMESTAMPTZ,
	redeemed_by    TEXT,
	CONSTRAINT tickets_transaction_id_key UNIQUE (transaction_id)
);`

// EnsureSchema creates the tickets table if it does not exist yet
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure tickets schema: %w", err)
	}
	return nil
}
