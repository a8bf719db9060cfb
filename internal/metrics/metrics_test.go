package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Verification reason wins over the generic failure", &domain.VerificationError{Reason: domain.ErrWrongAmount}, "wrong_amount"},
		{"Wrapped conflict", fmt.Errorf("issue: %w", domain.ErrTransactionAlreadyUsed), "transaction_already_used"},
		{"Not authorized", domain.ErrNotAuthorized, "not_authorized"},
		{"Already redeemed", domain.ErrAlreadyRedeemed, "already_redeemed"},
		{"Unknown error", errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder(reg)

	rec.TicketIssued()
	rec.TicketIssued()
	rec.IssueRejected(domain.ErrTransactionAlreadyUsed)
	rec.TicketRedeemed()
	rec.RedeemRejected(domain.ErrAlreadyRedeemed)
	rec.ResolverRequest("https://api.hive.blog", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.ticketsIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.issueRejected.WithLabelValues("transaction_already_used")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.ticketsRedeemed))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.redeemRejected.WithLabelValues("already_redeemed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.resolverRequests.WithLabelValues("https://api.hive.blog", "ok")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.TicketIssued()
		rec.IssueRejected(domain.ErrWrongAmount)
		rec.TicketRedeemed()
		rec.RedeemRejected(domain.ErrNotAuthorized)
		rec.ResolverRequest("node", "error")
	})
}
