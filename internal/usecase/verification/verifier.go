package verification

import (
	"context"
	"errors"
	"strings"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

// Verifier checks a chain transaction against the configured payment
type Verifier struct {
	Resolver domain.TransactionResolver
	Spec     domain.PaymentSpec
}

// NewVerifier creates a new Verifier instance
func NewVerifier(resolver domain.TransactionResolver, spec domain.PaymentSpec) *Verifier {
	return &Verifier{
		Resolver: resolver,
		Spec:     spec,
	}
}

// Verify resolves the transaction and evaluates it against the payment spec.
// Checks run in this order and the first failure wins:
//  1. Resolve the transaction (NotFound / ResolverUnavailable)
//  2. Select the first transfer operation
//  3. Destination account (case-insensitive)
//  4. Sender matches the claimed username (case-insensitive)
//  5. Amount parses as "<decimal> <currency>"
//  6. Currency (case-insensitive)
//  7. Amount (exact decimal equality)
//
// Every failure is a *domain.VerificationError; nothing is retried here.
func (v *Verifier) Verify(ctx context.Context, transactionID, claimedUsername string) (*domain.VerifiedTransfer, error) {
	// 1. Resolve
	record, err := v.Resolver.Resolve(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, &domain.VerificationError{Reason: domain.ErrTransactionNotFound, Err: err}
		}
		return nil, &domain.VerificationError{Reason: domain.ErrResolverUnavailable, Err: err}
	}

	// 2. First transfer operation
	transfer, ok := record.FirstTransfer()
	if !ok {
		return nil, &domain.VerificationError{Reason: domain.ErrNoTransferOperation}
	}

	// 3. Destination
	if !strings.EqualFold(transfer.To, v.Spec.DestinationAccount) {
		return nil, &domain.VerificationError{
			Reason:   domain.ErrWrongDestination,
			Expected: v.Spec.DestinationAccount,
			Actual:   transfer.To,
		}
	}

	// 4. Sender
	if !strings.EqualFold(transfer.From, claimedUsername) {
		return nil, &domain.VerificationError{
			Reason:   domain.ErrUsernameMismatch,
			Expected: claimedUsername,
			Actual:   transfer.From,
		}
	}

	// 5. Amount format
	asset, err := domain.ParseAsset(transfer.Amount)
	if err != nil {
		return nil, &domain.VerificationError{Reason: domain.ErrMalformedAmount, Actual: transfer.Amount, Err: err}
	}

	// 6. Currency
	if !strings.EqualFold(asset.Currency, v.Spec.Currency) {
		return nil, &domain.VerificationError{
			Reason:   domain.ErrWrongCurrency,
			Expected: v.Spec.Currency,
			Actual:   asset.Currency,
		}
	}

	// 7. Amount, zero tolerance
	if !asset.Amount.Equal(v.Spec.Amount) {
		return nil, &domain.VerificationError{
			Reason:   domain.ErrWrongAmount,
			Expected: domain.FormatAmount(v.Spec.Amount),
			Actual:   domain.FormatAmount(asset.Amount),
		}
	}

	canonicalID := domain.NormalizeTransactionID(record.TransactionID)
	if canonicalID == "" {
		canonicalID = domain.NormalizeTransactionID(transactionID)
	}

	return &domain.VerifiedTransfer{
		TransactionID: canonicalID,
		From:          transfer.From,
		To:            transfer.To,
		Amount:        asset.Amount,
		Currency:      asset.Currency,
		Memo:          transfer.Memo,
	}, nil
}
