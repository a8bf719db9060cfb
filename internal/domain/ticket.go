package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketStatus represents the lifecycle state of a ticket
type TicketStatus string

const (
	TicketStatusIssued   TicketStatus = "ISSUED"
	TicketStatusRedeemed TicketStatus = "REDEEMED"
)

// Ticket represents a redeemable credential bound 1:1 to a verified payment
type Ticket struct {
	ID            uuid.UUID
	Username      string
	TransactionID string // Unique across all tickets
	Amount        decimal.Decimal
	Currency      string
	Memo          string
	IssuedAt      time.Time // Stamped by the store on save
	QRData        string
	Status        TicketStatus
	RedeemedAt    *time.Time // NULL while ISSUED
	RedeemedBy    *string    // NULL while ISSUED
}

// NewTicket builds an ISSUED ticket for a verified transfer.
// Amount and currency always come from the payment spec, never from the transfer.
// The transfer's chain-reported id wins over the requested one when present.
func NewTicket(id uuid.UUID, username, transactionID string, transfer *VerifiedTransfer, spec PaymentSpec) *Ticket {
	if transfer.TransactionID != "" {
		transactionID = transfer.TransactionID
	}
	return &Ticket{
		ID:            id,
		Username:      username,
		TransactionID: transactionID,
		Amount:        spec.Amount,
		Currency:      spec.Currency,
		Memo:          transfer.Memo,
		Status:        TicketStatusIssued,
	}
}

// Validate ensures the ticket adheres to domain rules before it is persisted
func (t *Ticket) Validate() error {
	if t.ID == uuid.Nil {
		return errors.New("ticket ID cannot be empty")
	}
	if strings.TrimSpace(t.Username) == "" {
		return errors.New("ticket username cannot be empty")
	}
	if strings.TrimSpace(t.TransactionID) == "" {
		return errors.New("ticket transaction ID cannot be empty")
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("ticket amount must be positive")
	}
	if t.Currency == "" {
		return errors.New("ticket currency cannot be empty")
	}

	switch t.Status {
	case TicketStatusIssued:
		if t.RedeemedAt != nil || t.RedeemedBy != nil {
			return errors.New("issued ticket must not carry redemption data")
		}
	case TicketStatusRedeemed:
		if t.RedeemedAt == nil || t.RedeemedBy == nil {
			return errors.New("redeemed ticket must carry redemption data")
		}
	default:
		return errors.New("ticket status must be ISSUED or REDEEMED")
	}

	return nil
}

// IsRedeemed reports whether the ticket has been burned
func (t *Ticket) IsRedeemed() bool {
	return t.Status == TicketStatusRedeemed
}

// Redeem moves the ticket from ISSUED to REDEEMED.
// It fails with ErrAlreadyRedeemed if the transition already happened.
func (t *Ticket) Redeem(by string, at time.Time) error {
	if t.Status == TicketStatusRedeemed {
		return ErrAlreadyRedeemed
	}
	if t.Status != TicketStatusIssued {
		return errors.New("ticket status must be ISSUED to be redeemed")
	}

	redeemedAt := at.UTC()
	t.Status = TicketStatusRedeemed
	t.RedeemedAt = &redeemedAt
	t.RedeemedBy = &by
	return nil
}

// qrPayload is the public part of a ticket embedded in its QR code
type qrPayload struct {
	TicketID      string `json:"ticket_id"`
	Username      string `json:"username"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Memo          string `json:"memo"`
}

// QRPayload returns the compact JSON document encoded into the ticket's QR code
func (t *Ticket) QRPayload() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(qrPayload{
		TicketID:      t.ID.String(),
		Username:      t.Username,
		TransactionID: t.TransactionID,
		Amount:        FormatAmount(t.Amount),
		Currency:      t.Currency,
		Memo:          t.Memo,
	}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
