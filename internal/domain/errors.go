package domain

import (
	"errors"
	"fmt"
)

// Verification failure reasons. A *VerificationError carries exactly one of them.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrResolverUnavailable = errors.New("transaction resolver unavailable")
	ErrNoTransferOperation = errors.New("transaction has no transfer operation")
	ErrWrongDestination    = errors.New("wrong destination account")
	ErrUsernameMismatch    = errors.New("username mismatch")
	ErrMalformedAmount     = errors.New("malformed transfer amount")
	ErrWrongCurrency       = errors.New("wrong currency")
	ErrWrongAmount         = errors.New("wrong amount")
)

// Issuance, storage and redemption errors
var (
	ErrVerificationFailed     = errors.New("verification failed")
	ErrTransactionAlreadyUsed = errors.New("transaction already used")
	ErrEncodingFailed         = errors.New("ticket encoding failed")
	ErrInvalidInput           = errors.New("invalid input")

	ErrTicketNotFound       = errors.New("ticket not found")
	ErrAlreadyRedeemed      = errors.New("ticket already redeemed")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrDuplicateTicketID    = errors.New("duplicate ticket id")

	ErrNotAuthorized = errors.New("not authorized")
)

// VerificationError is returned when a transaction does not qualify as a ticket payment.
// errors.Is matches both ErrVerificationFailed and the specific Reason.
type VerificationError struct {
	Reason   error
	Expected string
	Actual   string
	Err      error // underlying cause, if any
}

func (e *VerificationError) Error() string {
	msg := ErrVerificationFailed.Error() + ": " + e.Reason.Error()
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected %q, got %q)", e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}

func (e *VerificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// IsTransient reports whether a verification failed for infrastructure reasons
// rather than because of the transaction's content
func (e *VerificationError) IsTransient() bool {
	return errors.Is(e.Reason, ErrResolverUnavailable)
}
