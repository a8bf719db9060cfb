package redemption

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cinexpo/cinexpo-backend/internal/adapter/repository/sqlite"
	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

// MockTicketRepository is a mock implementation of TicketRepository for testing
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) ExistsByTransaction(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByTransaction(ctx context.Context, transactionID string) (*domain.Ticket, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Redeem(ctx context.Context, id uuid.UUID, adminUsername string) (*domain.Ticket, error) {
	args := m.Called(ctx, id, adminUsername)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func TestAllowList_Contains(t *testing.T) {
	admins := NewAllowList([]string{"admin", " CinExpo ", ""})

	assert.True(t, admins.Contains("admin"))
	assert.True(t, admins.Contains("ADMIN"))
	assert.True(t, admins.Contains("cinexpo"))
	assert.False(t, admins.Contains("random"))
	assert.False(t, admins.Contains(""))
}

func TestRedeemTicket_Success(t *testing.T) {
	ctx := context.Background()
	repo := new(MockTicketRepository)
	service := NewRedemptionService(repo, NewAllowList([]string{"admin"}), nil)

	ticketID := uuid.New()
	redeemedAt := time.Now().UTC()
	by := "Admin"
	redeemed := &domain.Ticket{ID: ticketID, Status: domain.TicketStatusRedeemed, RedeemedAt: &redeemedAt, RedeemedBy: &by}

	repo.On("Redeem", ctx, ticketID, "Admin").Return(redeemed, nil)

	ticket, err := service.RedeemTicket(ctx, ticketID, "Admin")

	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRedeemed, ticket.Status)
	repo.AssertExpectations(t)
}

func TestRedeemTicket_NotAuthorizedNeverTouchesStore(t *testing.T) {
	ctx := context.Background()
	repo := new(MockTicketRepository)
	service := NewRedemptionService(repo, NewAllowList([]string{"admin"}), nil)

	_, err := service.RedeemTicket(ctx, uuid.New(), "random")

	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Equal(t, "not authorized", err.Error())
	repo.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedeemTicket_StoreErrorsPassThrough(t *testing.T) {
	for _, storeErr := range []error{domain.ErrTicketNotFound, domain.ErrAlreadyRedeemed} {
		t.Run(storeErr.Error(), func(t *testing.T) {
			ctx := context.Background()
			repo := new(MockTicketRepository)
			service := NewRedemptionService(repo, NewAllowList([]string{"admin"}), nil)
			ticketID := uuid.New()

			repo.On("Redeem", ctx, ticketID, "admin").Return(nil, storeErr)

			_, err := service.RedeemTicket(ctx, ticketID, "admin")

			assert.ErrorIs(t, err, storeErr)
		})
	}
}

func seedTicket(t *testing.T, store *sqlite.Store) *domain.Ticket {
	ticket := &domain.Ticket{
		ID:            uuid.New(),
		Username:      "alice",
		TransactionID: uuid.NewString(),
		Amount:        decimal.RequireFromString("0.500"),
		Currency:      "HBD",
		QRData:        "qr",
		Status:        domain.TicketStatusIssued,
	}
	require.NoError(t, store.Save(context.Background(), ticket))
	return ticket
}

func TestRedeemTicket_AdminBurnsOnce(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tickets.db"), domain.SystemClock{})
	require.NoError(t, err)
	defer store.Close()

	service := NewRedemptionService(store, NewAllowList([]string{"admin", "cinexpo"}), nil)
	ticket := seedTicket(t, store)

	redeemed, err := service.RedeemTicket(ctx, ticket.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedBy)
	assert.Equal(t, "admin", *redeemed.RedeemedBy)

	_, err = service.RedeemTicket(ctx, ticket.ID, "admin")
	assert.ErrorIs(t, err, domain.ErrAlreadyRedeemed)

	_, err = service.RedeemTicket(ctx, ticket.ID, "random")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = service.RedeemTicket(ctx, uuid.New(), "random")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = service.RedeemTicket(ctx, uuid.New(), "admin")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestRedeemTicket_ConcurrentExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tickets.db"), domain.SystemClock{})
	require.NoError(t, err)
	defer store.Close()

	service := NewRedemptionService(store, NewAllowList([]string{"admin", "cinexpo"}), nil)
	ticket := seedTicket(t, store)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		admin := "admin"
		if i%2 == 0 {
			admin = "cinexpo"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.RedeemTicket(ctx, ticket.ID, admin)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadyRedeemed):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, rejected)

	stored, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRedeemed())
}
