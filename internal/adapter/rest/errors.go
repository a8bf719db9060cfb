package rest

import (
	"errors"
	"net/http"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

// statusFor maps a domain error to its HTTP status and client-facing message.
// Order matters: a VerificationError matches ErrVerificationFailed and its reason.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrResolverUnavailable):
		return http.StatusBadGateway, "blockchain node unavailable, try again later"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, domain.ErrTransactionNotFound.Error()
	case errors.Is(err, domain.ErrVerificationFailed):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrTransactionAlreadyUsed):
		return http.StatusConflict, domain.ErrTransactionAlreadyUsed.Error()
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, domain.ErrNotAuthorized.Error()
	case errors.Is(err, domain.ErrTicketNotFound):
		return http.StatusNotFound, domain.ErrTicketNotFound.Error()
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return http.StatusConflict, domain.ErrAlreadyRedeemed.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
