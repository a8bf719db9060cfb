package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T, clock domain.Clock) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "tickets.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTicket(transactionID string) *domain.Ticket {
	return &domain.Ticket{
		ID:            uuid.New(),
		Username:      "alice",
		TransactionID: transactionID,
		Amount:        decimal.RequireFromString("0.500"),
		Currency:      "HBD",
		Memo:          "premiere",
		QRData:        "data:image/png;base64,AAAA",
		Status:        domain.TicketStatusIssued,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 3, 1, 18, 30, 0, 123456789, time.UTC)}
	store := newTestStore(t, clock)

	ticket := newTicket("tx-1")
	require.NoError(t, store.Save(ctx, ticket))

	// Stamped once by the store, at microsecond precision
	assert.Equal(t, time.Date(2025, 3, 1, 18, 30, 0, 123456000, time.UTC), ticket.IssuedAt)

	byID, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byID.ID)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "tx-1", byID.TransactionID)
	assert.Equal(t, "0.500", domain.FormatAmount(byID.Amount))
	assert.Equal(t, "HBD", byID.Currency)
	assert.Equal(t, "premiere", byID.Memo)
	assert.Equal(t, ticket.QRData, byID.QRData)
	assert.Equal(t, domain.TicketStatusIssued, byID.Status)
	assert.True(t, ticket.IssuedAt.Equal(byID.IssuedAt))
	assert.Nil(t, byID.RedeemedAt)
	assert.Nil(t, byID.RedeemedBy)

	byTx, err := store.GetByTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byTx.ID)

	exists, err := store.ExistsByTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsByTransaction(ctx, "tx-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, domain.SystemClock{})

	_, err := store.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)

	_, err = store.GetByTransaction(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestStore_SaveEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, domain.SystemClock{})

	first := newTicket("tx-1")
	require.NoError(t, store.Save(ctx, first))

	sameTx := newTicket("tx-1")
	assert.ErrorIs(t, store.Save(ctx, sameTx), domain.ErrDuplicateTransaction)
	assert.True(t, sameTx.IssuedAt.IsZero())

	sameID := newTicket("tx-2")
	sameID.ID = first.ID
	assert.ErrorIs(t, store.Save(ctx, sameID), domain.ErrDuplicateTicketID)

	exists, err := store.ExistsByTransaction(ctx, "tx-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_Redeem(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)

	ticket := newTicket("tx-1")
	require.NoError(t, store.Save(ctx, ticket))

	clock.now = clock.now.Add(2 * time.Hour)
	redeemed, err := store.Redeem(ctx, ticket.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)
	assert.True(t, clock.now.Equal(*redeemed.RedeemedAt))
	require.NotNil(t, redeemed.RedeemedBy)
	assert.Equal(t, "admin", *redeemed.RedeemedBy)
	assert.NoError(t, redeemed.Validate())

	clock.now = clock.now.Add(time.Minute)
	_, err = store.Redeem(ctx, ticket.ID, "cinexpo")
	assert.ErrorIs(t, err, domain.ErrAlreadyRedeemed)

	// The first redemption is kept
	stored, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", *stored.RedeemedBy)
	assert.True(t, redeemed.RedeemedAt.Equal(*stored.RedeemedAt))

	_, err = store.Redeem(ctx, uuid.New(), "admin")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestStore_ReopenKeepsTickets(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tickets.db")

	store, err := NewStore(path, domain.SystemClock{})
	require.NoError(t, err)
	ticket := newTicket("tx-1")
	require.NoError(t, store.Save(ctx, ticket))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path, domain.SystemClock{})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.TransactionID)
}
