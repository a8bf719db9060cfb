package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TicketRepository defines the interface for ticket persistence operations.
// Save and Redeem are the only paths that write tickets; each is atomic.
type TicketRepository interface {
	// ExistsByTransaction reports whether a ticket was already minted for the transaction
	ExistsByTransaction(ctx context.Context, transactionID string) (bool, error)

	// Save inserts a new ticket and stamps its IssuedAt
	// Returns ErrDuplicateTransaction or ErrDuplicateTicketID on a unique violation
	Save(ctx context.Context, ticket *Ticket) error

	// GetByID retrieves a ticket by its ID
	// Returns ErrTicketNotFound if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)

	// GetByTransaction retrieves the ticket minted for a transaction
	// Returns ErrTicketNotFound if it does not exist
	GetByTransaction(ctx context.Context, transactionID string) (*Ticket, error)

	// Redeem atomically moves a ticket from ISSUED to REDEEMED
	// Returns ErrTicketNotFound or ErrAlreadyRedeemed
	Redeem(ctx context.Context, id uuid.UUID, adminUsername string) (*Ticket, error)
}

// TransactionResolver resolves a transaction id to its full on-chain record.
// Implementations return ErrTransactionNotFound or ErrResolverUnavailable.
type TransactionResolver interface {
	Resolve(ctx context.Context, transactionID string) (*TransactionRecord, error)
}

// QREncoder renders a payload into a displayable artifact reference
type QREncoder interface {
	Encode(payload string) (string, error)
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
