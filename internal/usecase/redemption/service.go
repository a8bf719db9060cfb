package redemption

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
	"github.com/cinexpo/cinexpo-backend/internal/metrics"
)

// AllowList is the static set of admin usernames allowed to burn tickets
type AllowList struct {
	users map[string]struct{}
}

// NewAllowList builds a case-insensitive allow-list, ignoring blank entries
func NewAllowList(users []string) AllowList {
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			set[u] = struct{}{}
		}
	}
	return AllowList{users: set}
}

// Contains reports whether username is an admin, ignoring case
func (a AllowList) Contains(username string) bool {
	_, ok := a.users[strings.ToLower(strings.TrimSpace(username))]
	return ok
}

// RedemptionService burns tickets on behalf of allow-listed admins
type RedemptionService struct {
	TicketRepo domain.TicketRepository
	Admins     AllowList
	Metrics    *metrics.Recorder
}

// NewRedemptionService creates a new RedemptionService instance
func NewRedemptionService(ticketRepo domain.TicketRepository, admins AllowList, recorder *metrics.Recorder) *RedemptionService {
	return &RedemptionService{
		TicketRepo: ticketRepo,
		Admins:     admins,
		Metrics:    recorder,
	}
}

// RedeemTicket moves a ticket from ISSUED to REDEEMED exactly once
// Logic:
//  1. Check the caller against the admin allow-list, regardless of ticket state
//  2. Delegate the atomic transition to the store
func (s *RedemptionService) RedeemTicket(ctx context.Context, ticketID uuid.UUID, adminUsername string) (*domain.Ticket, error) {
	// 1. Authorize
	if !s.Admins.Contains(adminUsername) {
		s.Metrics.RedeemRejected(domain.ErrNotAuthorized)
		return nil, domain.ErrNotAuthorized
	}

	// 2. Burn
	ticket, err := s.TicketRepo.Redeem(ctx, ticketID, strings.TrimSpace(adminUsername))
	if err != nil {
		s.Metrics.RedeemRejected(err)
		return nil, fmt.Errorf("redeem ticket %s: %w", ticketID, err)
	}

	s.Metrics.TicketRedeemed()
	return ticket, nil
}
