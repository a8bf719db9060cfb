package rest

import (
	"time"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

// VerifyPaymentRequest is the body of POST /payments/verify
type VerifyPaymentRequest struct {
	Username      string `json:"username"`
	TransactionID string `json:"transaction_id"`
}

// ValidateTicketRequest is the body of POST /tickets/validate
type ValidateTicketRequest struct {
	TicketID      string `json:"ticket_id"`
	AdminUsername string `json:"admin_username"`
}

// TicketResponse is the public view of a ticket
type TicketResponse struct {
	TicketID      string     `json:"ticket_id"`
	Username      string     `json:"username"`
	TransactionID string     `json:"transaction_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Memo          string     `json:"memo"`
	IssuedAt      time.Time  `json:"issued_at"`
	Status        string     `json:"status"`
	Used          bool       `json:"used"`
	RedeemedAt    *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy    *string    `json:"redeemed_by,omitempty"`
	QRData        string     `json:"qr_data,omitempty"`
}

// VerifyPaymentResponse is returned once a ticket has been minted
type VerifyPaymentResponse struct {
	TicketID string         `json:"ticket_id"`
	QRImage  string         `json:"qr_image"`
	Ticket   TicketResponse `json:"ticket"`
}

// ValidateTicketResponse is returned once a ticket has been burned
type ValidateTicketResponse struct {
	Message string         `json:"message"`
	Ticket  TicketResponse `json:"ticket"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func toTicketResponse(t *domain.Ticket, withQR bool) TicketResponse {
	resp := TicketResponse{
		TicketID:      t.ID.String(),
		Username:      t.Username,
		TransactionID: t.TransactionID,
		Amount:        domain.FormatAmount(t.Amount),
		Currency:      t.Currency,
		Memo:          t.Memo,
		IssuedAt:      t.IssuedAt,
		Status:        string(t.Status),
		Used:          t.IsRedeemed(),
		RedeemedAt:    t.RedeemedAt,
		RedeemedBy:    t.RedeemedBy,
	}
	if withQR {
		resp.QRData = t.QRData
	}
	return resp
}
