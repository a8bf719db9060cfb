package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

const (
	uniqueViolation          = "23505"
	ticketsPrimaryKey        = "tickets_pkey"
	ticketsTransactionUnique = "tickets_transaction_id_key"
)

const selectTicket = `
	SELECT ticket_id, username, transaction_id, amount, currency, memo,
	       issued_at, qr_data, status, redeemed_at, redeemed_by
	FROM tickets
`

// ticketRepository implements domain.TicketRepository
type ticketRepository struct {
	db    *DB
	clock domain.Clock
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *DB, clock domain.Clock) domain.TicketRepository {
	return &ticketRepository{db: db, clock: clock}
}

// ExistsByTransaction reports whether a ticket was minted for the transaction
func (r *ticketRepository) ExistsByTransaction(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tickets WHERE transaction_id = $1)`, transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

// Save inserts a new ticket; IssuedAt is stamped here and nowhere else
func (r *ticketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	issuedAt := r.clock.Now().UTC().Truncate(time.Microsecond)

	query := `
		INSERT INTO tickets (ticket_id, username, transaction_id, amount, currency, memo, issued_at, qr_data, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.Username,
		ticket.TransactionID,
		domain.FormatAmount(ticket.Amount),
		ticket.Currency,
		ticket.Memo,
		issuedAt,
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
func (r *ticketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx, selectTicket+`WHERE ticket_id = $1`, id))
}

// GetByTransaction retrieves the ticket minted for a transaction
func (r *ticketRepository) GetByTransaction(ctx context.Context, transactionID string) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx, selectTicket+`WHERE transaction_id = $1`, transactionID))
}

// Redeem locks the ticket row, applies the transition and commits in one transaction
func (r *ticketRepository) Redeem(ctx context.Context, id uuid.UUID, adminUsername string) (*domain.Ticket, error) {
	// Start a database transaction
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Concurrent redeemers queue on the row lock
	ticket, err := scanTicket(dbTx.QueryRowContext(ctx, selectTicket+`WHERE ticket_id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if err := ticket.Redeem(adminUsername, r.clock.Now().UTC().Truncate(time.Microsecond)); err != nil {
		return nil, err
	}

	res, err := dbTx.ExecContext(ctx, `
		UPDATE tickets
		SET status = $1, redeemed_at = $2, redeemed_by = $3
		WHERE ticket_id = $4 AND status = $5
	`,
		string(ticket.Status),
		*ticket.RedeemedAt,
		*ticket.RedeemedBy,
		ticket.ID,
		string(domain.TicketStatusIssued),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	} else if n == 0 {
		return nil, domain.ErrAlreadyRedeemed
	}

	// Commit the transaction
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ticket, nil
}

func scanTicket(row *sql.Row) (*domain.Ticket, error) {
	var (
		ticket            domain.Ticket
		amountStr, status string
		redeemedAt        sql.NullTime
		redeemedBy        sql.NullString
	)

	err := row.Scan(
		&ticket.ID,
		&ticket.Username,
		&ticket.TransactionID,
		&amountStr,
		&ticket.Currency,
		&ticket.Memo,
		&ticket.IssuedAt,
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

	// Parse amount (NUMERIC keeps the scale it was written with)
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	ticket.Amount = amount
	ticket.IssuedAt = ticket.IssuedAt.UTC()
	ticket.Status = domain.TicketStatus(status)

	if redeemedAt.Valid {
		at := redeemedAt.Time.UTC()
		ticket.RedeemedAt = &at
	}
	if redeemedBy.Valid {
		by := redeemedBy.String
		ticket.RedeemedBy = &by
	}

	return &ticket, nil
}

// duplicateError maps a unique violation to its domain error, or returns nil
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch pqErr.Constraint {
	case ticketsTransactionUnique:
		return domain.ErrDuplicateTransaction
	case ticketsPrimaryKey:
		return domain.ErrDuplicateTicketID
	default:
		return nil
	}
}
