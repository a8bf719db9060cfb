package lookup

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

// LookupService handles read-only ticket queries
type LookupService struct {
	TicketRepo domain.TicketRepository
}

// NewLookupService creates a new LookupService instance
func NewLookupService(ticketRepo domain.TicketRepository) *LookupService {
	return &LookupService{
		TicketRepo: ticketRepo,
	}
}

// GetTicket retrieves a ticket by its ID
func (s *LookupService) GetTicket(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	ticket, err := s.TicketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", ticketID, err)
	}
	return ticket, nil
}

// GetTicketByTransaction retrieves the ticket minted for a chain transaction
func (s *LookupService) GetTicketByTransaction(ctx context.Context, transactionID string) (*domain.Ticket, error) {
	transactionID = domain.NormalizeTransactionID(transactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", domain.ErrInvalidInput)
	}

	ticket, err := s.TicketRepo.GetByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get ticket for transaction %s: %w", transactionID, err)
	}
	return ticket, nil
}
