package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentSpec is the fixed payment a transfer must match to mint a ticket
type PaymentSpec struct {
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
}

// NewPaymentSpec builds a PaymentSpec from its configured string values
func NewPaymentSpec(destination, amount, currency string) (PaymentSpec, error) {
	destination = strings.TrimSpace(destination)
	currency = strings.TrimSpace(currency)
	if destination == "" {
		return PaymentSpec{}, errors.New("payment destination account cannot be empty")
	}
	if currency == "" {
		return PaymentSpec{}, errors.New("payment currency cannot be empty")
	}

	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return PaymentSpec{}, fmt.Errorf("invalid payment amount %q: %w", amount, err)
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return PaymentSpec{}, errors.New("payment amount must be positive")
	}

	return PaymentSpec{
		DestinationAccount: destination,
		Amount:             value,
		Currency:           currency,
	}, nil
}

// OperationType is the discriminant of a chain operation
type OperationType string

const (
	OperationTypeTransfer OperationType = "transfer"
)

// TransferOperation is the body of a "transfer" operation as recorded on chain.
// Amount keeps the raw "<decimal> <CODE>" form; use ParseAsset to read it.
type TransferOperation struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo"`
}

// Operation is a single operation of a transaction.
// Transfer is set iff Type is OperationTypeTransfer; other types keep their body in Raw.
type Operation struct {
	Type     OperationType
	Transfer *TransferOperation
	Raw      json.RawMessage
}

// TransactionRecord is a resolved chain transaction with its operations in recorded order
type TransactionRecord struct {
	TransactionID string
	Operations    []Operation
}

// FirstTransfer returns the first transfer operation of the transaction
func (r *TransactionRecord) FirstTransfer() (*TransferOperation, bool) {
	for _, op := range r.Operations {
		if op.Type == OperationTypeTransfer && op.Transfer != nil {
			return op.Transfer, true
		}
	}
	return nil, false
}

// Asset is a parsed "<decimal> <CODE>" chain amount
type Asset struct {
	Amount   decimal.Decimal
	Currency string
}

// ParseAsset parses a chain amount such as "0.500 HBD".
// The value must be exactly a decimal literal and a currency code separated by whitespace.
func ParseAsset(raw string) (Asset, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Asset{}, fmt.Errorf("amount %q must have the form \"<decimal> <currency>\"", raw)
	}

	amount, err := decimal.NewFromString(fields[0])
	if err != nil {
		return Asset{}, fmt.Errorf("amount %q has a non-numeric value: %w", raw, err)
	}

	return Asset{Amount: amount, Currency: fields[1]}, nil
}

// VerifiedTransfer is a transfer that passed every PaymentSpec check.
// TransactionID is the id as the chain reports it, not as the client typed it.
type VerifiedTransfer struct {
	TransactionID string
	From          string
	To            string
	Amount        decimal.Decimal
	Currency      string
	Memo          string
}

// NormalizeTransactionID trims the id and lowercases it when it is hex.
// Nodes parse ids as hex regardless of case, so "ABC1" and "abc1" name the same transaction.
func NormalizeTransactionID(raw string) string {
	id := strings.TrimSpace(raw)
	for _, r := range id {
		if !isHexDigit(r) {
			return id
		}
	}
	return strings.ToLower(id)
}

func isHexDigit(r rune) bool {
	return ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

// FormatAmount renders an amount with the scale it was written with, so 0.500 stays "0.500"
func FormatAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
