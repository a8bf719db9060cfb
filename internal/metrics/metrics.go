package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

// Recorder holds the ticketing counters. A nil *Recorder records nothing.
type Recorder struct {
	ticketsIssued    prometheus.Counter
	issueRejected    *prometheus.CounterVec
	ticketsRedeemed  prometheus.Counter
	redeemRejected   *prometheus.CounterVec
	resolverRequests *prometheus.CounterVec
}

// NewRecorder registers the ticketing counters on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		ticketsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinexpo_tickets_issued_total",
			Help: "The total number of tickets minted from verified payments",
		}),
		issueRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinexpo_ticket_issue_rejected_total",
			Help: "The total number of rejected ticket issuance requests by reason",
		}, []string{"reason"}),
		ticketsRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinexpo_tickets_redeemed_total",
			Help: "The total number of tickets burned at the door",
		}),
		redeemRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinexpo_ticket_redeem_rejected_total",
			Help: "The total number of rejected redemption requests by reason",
		}, []string{"reason"}),
		resolverRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinexpo_resolver_requests_total",
			Help: "The total number of transaction lookups against chain nodes by outcome",
		}, []string{"node", "outcome"}),
	}
}

func (r *Recorder) TicketIssued() {
	if r == nil {
		return
	}
	r.ticketsIssued.Inc()
}

func (r *Recorder) IssueRejected(err error) {
	if r == nil {
		return
	}
	r.issueRejected.WithLabelValues(Reason(err)).Inc()
}

func (r *Recorder) TicketRedeemed() {
	if r == nil {
		return
	}
	r.ticketsRedeemed.Inc()
}

func (r *Recorder) RedeemRejected(err error) {
	if r == nil {
		return
	}
	r.redeemRejected.WithLabelValues(Reason(err)).Inc()
}

func (r *Recorder) ResolverRequest(node, outcome string) {
	if r == nil {
		return
	}
	r.resolverRequests.WithLabelValues(node, outcome).Inc()
}

var reasons = []struct {
	err   error
	label string
}{
	{domain.ErrInvalidInput, "invalid_input"},
	{domain.ErrTransactionNotFound, "transaction_not_found"},
	{domain.ErrResolverUnavailable, "resolver_unavailable"},
	{domain.ErrNoTransferOperation, "no_transfer_operation"},
	{domain.ErrWrongDestination, "wrong_destination"},
	{domain.ErrUsernameMismatch, "username_mismatch"},
	{domain.ErrMalformedAmount, "malformed_amount"},
	{domain.ErrWrongCurrency, "wrong_currency"},
	{domain.ErrWrongAmount, "wrong_amount"},
	{domain.ErrTransactionAlreadyUsed, "transaction_already_used"},
	{domain.ErrEncodingFailed, "encoding_failed"},
	{domain.ErrNotAuthorized, "not_authorized"},
	{domain.ErrTicketNotFound, "ticket_not_found"},
	{domain.ErrAlreadyRedeemed, "already_redeemed"},
}

// Reason maps an error to a bounded metric label
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "internal"
}
