package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
	"github.com/cinexpo/cinexpo-backend/internal/metrics"
)

// DefaultResolveTimeout bounds how long a single issuance may wait on the chain
const DefaultResolveTimeout = 10 * time.Second

// TransferVerifier verifies that a transaction pays for a ticket
type TransferVerifier interface {
	Verify(ctx context.Context, transactionID, claimedUsername string) (*domain.VerifiedTransfer, error)
}

// IssueTicketInput represents the input for issuing a ticket
type IssueTicketInput struct {
	Username      string
	TransactionID string
}

// IssuanceService mints tickets from verified payments
type IssuanceService struct {
	TicketRepo     domain.TicketRepository
	Verifier       TransferVerifier
	Encoder        domain.QREncoder
	Spec           domain.PaymentSpec
	ResolveTimeout time.Duration
	Metrics        *metrics.Recorder

	newID func() uuid.UUID
}

// NewIssuanceService creates a new IssuanceService instance
func NewIssuanceService(
	ticketRepo domain.TicketRepository,
	verifier TransferVerifier,
	encoder domain.QREncoder,
	spec domain.PaymentSpec,
	resolveTimeout time.Duration,
	recorder *metrics.Recorder,
) *IssuanceService {
	if resolveTimeout <= 0 {
		resolveTimeout = DefaultResolveTimeout
	}
	return &IssuanceService{
		TicketRepo:     ticketRepo,
		Verifier:       verifier,
		Encoder:        encoder,
		Spec:           spec,
		ResolveTimeout: resolveTimeout,
		Metrics:        recorder,
		newID:          uuid.New,
	}
}

// IssueTicket verifies a payment and mints exactly one ticket for it
// Logic:
//  1. Reject a transaction that already funded a ticket (fast path only)
//  2. Verify the transaction against the payment spec, bounded by ResolveTimeout
//  3. Generate a fresh ticket ID
//  4. Build the ISSUED ticket from the verified transfer and the payment spec
//  5. Encode the public fields into a QR code
//  6. Save; a unique violation here is a concurrent duplicate, not an internal error
func (s *IssuanceService) IssueTicket(ctx context.Context, input IssueTicketInput) (*domain.Ticket, error) {
	ticket, err := s.issue(ctx, input)
	if err != nil {
		s.Metrics.IssueRejected(err)
		return nil, err
	}
	s.Metrics.TicketIssued()
	return ticket, nil
}

func (s *IssuanceService) issue(ctx context.Context, input IssueTicketInput) (*domain.Ticket, error) {
	username := strings.TrimSpace(input.Username)
	transactionID := domain.NormalizeTransactionID(input.TransactionID)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", domain.ErrInvalidInput)
	}

	// 1. Fast-path uniqueness check
	used, err := s.TicketRepo.ExistsByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check transaction usage: %w", err)
	}
	if used {
		return nil, domain.ErrTransactionAlreadyUsed
	}

	// 2. Verify on chain
	verifyCtx, cancel := context.WithTimeout(ctx, s.ResolveTimeout)
	defer cancel()

	transfer, err := s.Verifier.Verify(verifyCtx, transactionID, username)
	if err != nil {
		return nil, err
	}

	// 3-4. Build the ticket, bound to the id the chain reported
	ticket := domain.NewTicket(s.newID(), username, transactionID, transfer, s.Spec)
	if err := ticket.Validate(); err != nil {
		return nil, err
	}

	// 5. Encode
	payload, err := ticket.QRPayload()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncodingFailed, err)
	}
	qrData, err := s.Encoder.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncodingFailed, err)
	}
	ticket.QRData = qrData

	// 6. Persist; the store's unique constraints are the authoritative guard
	if err := s.TicketRepo.Save(ctx, ticket); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) || errors.Is(err, domain.ErrDuplicateTicketID) {
			return nil, domain.ErrTransactionAlreadyUsed
		}
		return nil, fmt.Errorf("failed to save ticket: %w", err)
	}

	return ticket, nil
}
