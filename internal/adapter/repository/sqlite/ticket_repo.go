package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

const selectTicket = `
	SELECT ticket_id, username, transaction_id, amount, currency, memo,
	       issued_at, qr_data, status, redeemed_at, redeemed_by
	FROM tickets
`

// Store implements domain.TicketRepository on an embedded SQLite file
type Store struct {
	db    *sql.DB
	clock domain.Clock
}

// NewStore opens (or creates) the ticket database at path
func NewStore(path string, clock domain.Clock) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, clock: clock}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// ExistsByTransaction reports whether a ticket was minted for the transaction
func (s *Store) ExistsByTransaction(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tickets WHERE transaction_id = ?)`, transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

// Save inserts a new ticket and stamps IssuedAt with the store clock
func (s *Store) Save(ctx context.Context, ticket *domain.Ticket) error {
	issuedAt := s.clock.Now().UTC().Truncate(time.Microsecond)

	query := `
		INSERT INTO tickets (ticket_id, username, transaction_id, amount, currency, memo, issued_at, qr_data, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ticket.ID.String(),
		ticket.Username,
		ticket.TransactionID,
		domain.FormatAmount(ticket.Amount),
		ticket.Currency,
		ticket.Memo,
		formatTime(issuedAt),
		ticket.QRData,
		string(domain.TicketStatusIssued),
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	ticket.IssuedAt = issuedAt
	ticket.Status = domain.TicketStatusIssued
	return nil
}

// GetByID retrieves a ticket by its ID
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return getTicket(ctx, s.db, `WHERE ticket_id = ?`, id.String())
}

// GetByTransaction retrieves the ticket minted for a transaction
func (s *Store) GetByTransaction(ctx context.Context, transactionID string) (*domain.Ticket, error) {
	return getTicket(ctx, s.db, `WHERE transaction_id = ?`, transactionID)
}

// Redeem burns the ticket with a conditional update inside one transaction
func (s *Store) Redeem(ctx context.Context, id uuid.UUID, adminUsername string) (*domain.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	redeemedAt := s.clock.Now().UTC().Truncate(time.Microsecond)
	res, err := tx.ExecContext(ctx, `
		UPDATE tickets
		SET status = ?, redeemed_at = ?, redeemed_by = ?
		WHERE ticket_id = ? AND status = ?
	`,
		string(domain.TicketStatusRedeemed),
		formatTime(redeemedAt),
		adminUsername,
		id.String(),
		string(domain.TicketStatusIssued),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}

	ticket, err := getTicket(ctx, tx, `WHERE ticket_id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, domain.ErrAlreadyRedeemed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ticket, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTicket(ctx context.Context, q queryer, where string, arg any) (*domain.Ticket, error) {
	var (
		ticket                       domain.Ticket
		id, amount, issuedAt, status string
		redeemedAt, redeemedBy       sql.NullString
	)

	err := q.QueryRowContext(ctx, selectTicket+where, arg).Scan(
		&id,
		&ticket.Username,
		&ticket.TransactionID,
		&amount,
		&ticket.Currency,
		&ticket.Memo,
		&issuedAt,
		&ticket.QRData,
		&status,
		&redeemedAt,
		&redeemedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	if ticket.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse ticket_id: %w", err)
	}
	if ticket.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if ticket.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, fmt.Errorf("failed to parse issued_at: %w", err)
	}
	ticket.Status = domain.TicketStatus(status)

	if redeemedAt.Valid {
		at, err := parseTime(redeemedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redeemed_at: %w", err)
		}
		ticket.RedeemedAt = &at
	}
	if redeemedBy.Valid {
		by := redeemedBy.String
		ticket.RedeemedBy = &by
	}

	return &ticket, nil
}

// duplicateError maps a unique constraint violation to its domain error, or returns nil
func duplicateError(err error) error {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	if sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return nil
	}

	switch {
	case strings.Contains(sqliteErr.Error(), "tickets.transaction_id"):
		return domain.ErrDuplicateTransaction
	case strings.Contains(sqliteErr.Error(), "tickets.ticket_id"):
		return domain.ErrDuplicateTicketID
	default:
		return nil
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
