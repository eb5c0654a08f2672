package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenek73/vaultatrees/internal/domain"
	"github.com/zhenek73/vaultatrees/internal/storage"
)

func newDecoration(typ domain.DecorationType, from, amount, txID string) *domain.Decoration {
	return &domain.Decoration{
		Type:        typ,
		FromAccount: from,
		Amount:      amount,
		TxID:        txID,
	}
}

func TestDecorationStore_InsertAndGet(t *testing.T) {
	store := NewDecorationStore()
	ctx := context.Background()

	d := newDecoration(domain.TypeLight, "alice", "0.2", "tx1")
	require.NoError(t, store.Insert(ctx, d))
	assert.Equal(t, int64(1), d.ID)
	assert.False(t, d.CreatedAt.IsZero())

	got, err := store.GetByTxID(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.FromAccount)

	// Returned copy does not alias the stored row
	got.FromAccount = "mallory"
	again, err := store.GetByTxID(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.FromAccount)
}

func TestDecorationStore_DuplicateTxID(t *testing.T) {
	store := NewDecorationStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newDecoration(domain.TypeLight, "alice", "0.2", "tx1")))
	err := store.Insert(ctx, newDecoration(domain.TypeLight, "bob", "0.2", "tx1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDecorationStore_InsertInvalid(t *testing.T) {
	store := NewDecorationStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, newDecoration(domain.TypeLight, "alice", "0.2", "")), storage.ErrInvalidInput)
}

func TestDecorationStore_GetByTxIDNotFound(t *testing.T) {
	store := NewDecorationStore()
	_, err := store.GetByTxID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDecorationStore_RecentTxIDs(t *testing.T) {
	store := NewDecorationStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, newDecoration(domain.TypeLight, "alice", "0.2", fmt.Sprintf("tx%d", i))))
	}

	ids, err := store.RecentTxIDs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "tx4", ids[0], "newest first")
	assert.Equal(t, "tx2", ids[2])
}

func TestDecorationStore_ExistingTxIDs(t *testing.T) {
	store := NewDecorationStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newDecoration(domain.TypeLight, "alice", "0.2", "tx1")))

	existing, err := store.ExistingTxIDs(ctx, []string{"tx1", "tx2"})
	require.NoError(t, err)
	assert.Len(t, existing, 1)
	assert.Contains(t, existing, "tx1")
}

func TestDecorationStore_ListSince(t *testing.T) {
	store := NewDecorationStore()
	ctx := context.Background()

	old := newDecoration(domain.TypeLight, "bob", "0.2", "txold")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.Insert(ctx, old))
	require.NoError(t, store.Insert(ctx, newDecoration(domain.TypeLight, "alice", "0.2", "txnew")))

	decs, err := store.ListSince(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, decs, 1)
	assert.Equal(t, "txnew", decs[0].TxID)

	decs, err = store.ListSince(ctx, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, decs, 2)
}

func TestDecorationStore_LeadingStarBid(t *testing.T) {
	store := NewDecorationStore()
	ctx := context.Background()

	_, err := store.LeadingStarBid(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, newDecoration(domain.TypeStar, "alice", "10", "tx1")))
	require.NoError(t, store.Insert(ctx, newDecoration(domain.TypeStar, "bob", "75.5", "tx2")))
	require.NoError(t, store.Insert(ctx, newDecoration(domain.TypeStar, "carol", "75.5", "tx3")))

	leading, err := store.LeadingStarBid(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", leading.FromAccount, "strict comparison keeps the earliest equal bid")
}

func TestParserStateStore(t *testing.T) {
	store := NewParserStateStore()
	ctx := context.Background()

	_, err := store.LastTxID(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.SetLastTxID(ctx, ""), storage.ErrInvalidInput)

	require.NoError(t, store.SetLastTxID(ctx, "tx1"))
	last, err := store.LastTxID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tx1", last)
}

func TestDonationEventStore(t *testing.T) {
	store := NewDonationEventStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)

	require.NoError(t, store.Insert(ctx, &domain.DonationEvent{
		TxID:        "tx1",
		Type:        domain.TypeStar,
		FromAccount: "alice",
		Amount:      "50",
	}))

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "tx1", all[0].TxID)
}

func TestDonationEventStore_DailyTotals(t *testing.T) {
	store := NewDonationEventStore()
	ctx := context.Background()

	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	insert := func(txID, amount string, created time.Time) {
		require.NoError(t, store.Insert(ctx, &domain.DonationEvent{
			TxID:        txID,
			Type:        domain.TypeLight,
			FromAccount: "alice",
			Amount:      amount,
			CreatedAt:   created,
		}))
	}
	insert("tx1", "0.2", day1)
	insert("tx2", "2", day1.Add(time.Hour))
	insert("tx3", "50", day2)
	insert("tx4", "not-a-number", day2)

	totals, err := store.DailyTotals(ctx, day1, day2.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.Equal(t, day1.Truncate(24*time.Hour), totals[0].Day)
	assert.Equal(t, uint64(2), totals[0].Count)
	assert.Equal(t, "2.2", totals[0].Amount.String())

	assert.Equal(t, uint64(1), totals[1].Count)
	assert.Equal(t, "50", totals[1].Amount.String())

	// Rows outside the window are excluded
	totals, err = store.DailyTotals(ctx, day2, day2.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, uint64(1), totals[0].Count)
}
