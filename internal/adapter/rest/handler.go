package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
	"github.com/cinexpo/cinexpo-backend/internal/usecase/issuance"
)

const maxBodyBytes = 1 << 20

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

// Handler serves the ticketing HTTP API
type Handler struct {
	Issuer   TicketIssuer
	Redeemer TicketRedeemer
	Finder   TicketFinder
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler set
func NewHandler(issuer TicketIssuer, redeemer TicketRedeemer, finder TicketFinder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Issuer:   issuer,
		Redeemer: redeemer,
		Finder:   finder,
		logger:   logger,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VerifyPayment handles POST /payments/verify
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ticket, err := h.Issuer.IssueTicket(r.Context(), issuance.IssueTicketInput{
		Username:      req.Username,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("ticket issued",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("username", ticket.Username),
		zap.String("transaction_id", ticket.TransactionID))

	writeJSON(w, http.StatusOK, VerifyPaymentResponse{
		TicketID: ticket.ID.String(),
		QRImage:  ticket.QRData,
		Ticket:   toTicketResponse(ticket, false),
	})
}

// ValidateTicket handles POST /tickets/validate
func (h *Handler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	var req ValidateTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	// A malformed id cannot name a ticket; the redeemer still authorizes first.
	ticketID, err := uuid.Parse(req.TicketID)
	if err != nil {
		ticketID = uuid.Nil
	}

	ticket, err := h.Redeemer.RedeemTicket(r.Context(), ticketID, req.AdminUsername)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("ticket redeemed",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("admin", req.AdminUsername))

	writeJSON(w, http.StatusOK, ValidateTicketResponse{
		Message: "ticket validated and burned",
		Ticket:  toTicketResponse(ticket, false),
	})
}

// GetTicket handles GET /tickets/{ticketID}
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "ticketID"))
	if err != nil {
		h.writeError(w, r, domain.ErrTicketNotFound)
		return
	}

	ticket, err := h.Finder.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTicketResponse(ticket, true))
}

// GetTicketByTransaction handles GET /tickets/by-transaction/{transactionID}
func (h *Handler) GetTicketByTransaction(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Finder.GetTicketByTransaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTicketResponse(ticket, true))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}

	writeJSON(w, status, errorResponse{Detail: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body too large", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid JSON payload", domain.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
