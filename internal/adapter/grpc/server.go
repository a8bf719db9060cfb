package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
	"github.com/cinexpo/cinexpo-backend/internal/usecase/issuance"
)

// TicketIssuer mints tickets from verified payments
type TicketIssuer interface {
	IssueTicket(ctx context.Context, input issuance.IssueTicketInput) (*domain.Ticket, error)
}

// TicketRedeemer burns tickets
type TicketRedeemer interface {
	RedeemTicket(ctx context.Context, ticketID uuid.UUID, adminUsername string) (*domain.Ticket, error)
}

// TicketFinder reads tickets
type TicketFinder interface {
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error)
	GetTicketByTransaction(ctx context.Context, transactionID string) (*domain.Ticket, error)
}

// Server implements the TicketService gRPC server
type Server struct {
	IssuanceService   TicketIssuer
	RedemptionService TicketRedeemer
	LookupService     TicketFinder
}

// NewServer creates a new gRPC server instance
func NewServer(issuer TicketIssuer, redeemer TicketRedeemer, finder TicketFinder) *Server {
	return &Server{
		IssuanceService:   issuer,
		RedemptionService: redeemer,
		LookupService:     finder,
	}
}

// IssuePayment handles the IssuePayment RPC
func (s *Server) IssuePayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ticket, err := s.IssuanceService.IssueTicket(ctx, issuance.IssueTicketInput{
		Username:      stringField(req, "username"),
		TransactionID: stringField(req, "transaction_id"),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"ticket_id": ticket.ID.String(),
		"qr_image":  ticket.QRData,
		"ticket":    ticketFields(ticket, false),
	})
}

// RedeemTicket handles the RedeemTicket RPC
func (s *Server) RedeemTicket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// Malformed ids fall through as uuid.Nil so authorization still runs first
	ticketID, err := uuid.Parse(stringField(req, "ticket_id"))
	if err != nil {
		ticketID = uuid.Nil
	}

	ticket, err := s.RedemptionService.RedeemTicket(ctx, ticketID, stringField(req, "admin_username"))
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]interface{}{
		"message": "ticket validated and burned",
		"ticket":  ticketFields(ticket, false),
	})
}

// GetTicket handles the GetTicket RPC; it looks up by ticket_id, or by transaction_id when that is set instead
func (s *Server) GetTicket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		ticket *domain.Ticket
		err    error
	)

	if txID := stringField(req, "transaction_id"); txID != "" && stringField(req, "ticket_id") == "" {
		ticket, err = s.LookupService.GetTicketByTransaction(ctx, txID)
	} else {
		ticketID, parseErr := uuid.Parse(stringField(req, "ticket_id"))
		if parseErr != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid ticket_id format: %v", parseErr)
		}
		ticket, err = s.LookupService.GetTicket(ctx, ticketID)
	}
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(ticketFields(ticket, true))
}

func stringField(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func ticketFields(t *domain.Ticket, withQR bool) map[string]interface{} {
	fields := map[string]interface{}{
		"ticket_id":      t.ID.String(),
		"username":       t.Username,
		"transaction_id": t.TransactionID,
		"amount":         domain.FormatAmount(t.Amount),
		"currency":       t.Currency,
		"memo":           t.Memo,
		"issued_at":      t.IssuedAt.UTC().Format(time.RFC3339Nano),
		"status":         string(t.Status),
		"used":           t.IsRedeemed(),
	}
	if t.RedeemedAt != nil {
		fields["redeemed_at"] = t.RedeemedAt.UTC().Format(time.RFC3339Nano)
	}
	if t.RedeemedBy != nil {
		fields["redeemed_by"] = *t.RedeemedBy
	}
	if withQR {
		fields["qr_data"] = t.QRData
	}
	return fields
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return out, nil
}

// mapError maps domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrResolverUnavailable):
		return status.Error(codes.Unavailable, "blockchain node unavailable")
	case errors.Is(err, domain.ErrTransactionNotFound):
		return status.Error(codes.NotFound, domain.ErrTransactionNotFound.Error())
	case errors.Is(err, domain.ErrVerificationFailed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrTransactionAlreadyUsed):
		return status.Error(codes.AlreadyExists, domain.ErrTransactionAlreadyUsed.Error())
	case errors.Is(err, domain.ErrNotAuthorized):
		return status.Error(codes.PermissionDenied, domain.ErrNotAuthorized.Error())
	case errors.Is(err, domain.ErrTicketNotFound):
		return status.Error(codes.NotFound, domain.ErrTicketNotFound.Error())
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return status.Error(codes.FailedPrecondition, domain.ErrAlreadyRedeemed.Error())
	default:
		return &internalError{cause: err}
	}
}

// internalError reaches the client as a bare codes.Internal while
// the interceptor still logs the underlying cause
type internalError struct {
	cause error
}

func (e *internalError) Error() string { return "internal error: " + e.cause.Error() }

func (e *internalError) Unwrap() error { return e.cause }

func (e *internalError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, "internal error")
}
