package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bridge-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositTxHashDedup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	first := newTestDeposit("ethereum", "bal:ethereum:addr-1:100")
	require.NoError(t, repo.Create(ctx, first))

	dup := newTestDeposit("ethereum", "bal:ethereum:addr-1:100")
	err := repo.Create(ctx, dup)
	require.Error(t, err, "duplicate tx_hash must be rejected")

	other := newTestDeposit("ethereum", "bal:ethereum:addr-1:101")
	require.NoError(t, repo.Create(ctx, other))
}

func TestUpdateConfirmationsMonotonic(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	dep := newTestDeposit("ethereum", "tx-1")
	require.NoError(t, repo.Create(ctx, dep))

	require.NoError(t, repo.UpdateConfirmations(ctx, dep.ID, 5))
	// A lagging RPC read must never lower the count.
	require.NoError(t, repo.UpdateConfirmations(ctx, dep.ID, 3))

	got, err := repo.GetByID(ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Confirmations)
}

func TestMarkConfirmedSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	dep := newTestDeposit("ethereum", "tx-2")
	require.NoError(t, repo.Create(ctx, dep))

	won, err := repo.MarkConfirmed(ctx, dep.ID)
	require.NoError(t, err)
	assert.True(t, won)

	again, err := repo.MarkConfirmed(ctx, dep.ID)
	require.NoError(t, err)
	assert.False(t, again, "second confirm must lose the CAS")

	got, err := repo.GetByID(ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
}

func TestMarkConfirmedConcurrentPolls(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	dep := newTestDeposit("ethereum", "tx-race")
	require.NoError(t, repo.Create(ctx, dep))

	// Two overlapping confirmation cycles both reach the threshold; the
	// CAS admits exactly one.
	const pollers = 8
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.MarkConfirmed(ctx, dep.ID)
			assert.NoError(t, err)
			if won {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)

	got, err := repo.GetByID(ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusConfirmed, got.Status)
}

func TestMarkMintedTxRequiresConfirmed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	dep := newTestDeposit("ethereum", "tx-3")
	require.NoError(t, repo.Create(ctx, dep))

	won, err := repo.MarkMintedTx(db, dep.ID, dep.Amount)
	require.NoError(t, err)
	assert.False(t, won, "pending deposit must not be mintable")

	_, err = repo.MarkConfirmed(ctx, dep.ID)
	require.NoError(t, err)

	won, err = repo.MarkMintedTx(db, dep.ID, dep.Amount)
	require.NoError(t, err)
	assert.True(t, won)

	again, err := repo.MarkMintedTx(db, dep.ID, dep.Amount)
	require.NoError(t, err)
	assert.False(t, again, "second mint must lose the CAS")

	got, err := repo.GetByID(ctx, dep.ID)
	require.NoError(t, err)
	assert.True(t, got.WrappedMinted)
	assert.True(t, got.WrappedAmount.Equal(dep.Amount))
	assert.NotNil(t, got.MintedAt)
}

func TestHasRecentDepositWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	dep := newTestDeposit("ethereum", "tx-4")
	require.NoError(t, repo.Create(ctx, dep))

	recent, err := repo.HasRecentDeposit(ctx, "ethereum", "addr-1", dep.Amount, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, recent)

	recent, err = repo.HasRecentDeposit(ctx, "ethereum", "addr-1", decimal.RequireFromString("9.9"), 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, recent, "different amount is a different deposit")

	recent, err = repo.HasRecentDeposit(ctx, "bitcoin", "addr-1", dep.Amount, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, recent, "window is per network")
}

func TestFindConfirmedUnminted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	dep := newTestDeposit("ethereum", "tx-5")
	require.NoError(t, repo.Create(ctx, dep))
	_, err := repo.MarkConfirmed(ctx, dep.ID)
	require.NoError(t, err)

	// Inside the grace window: nothing to report yet.
	rows, err := repo.FindConfirmedUnminted(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = repo.FindConfirmedUnminted(ctx, -time.Minute)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, dep.ID, rows[0].ID)

	_, err = repo.MarkMintedTx(db, dep.ID, dep.Amount)
	require.NoError(t, err)

	rows, err = repo.FindConfirmedUnminted(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Empty(t, rows, "minted deposits drop out of the sweep")
}

func TestMarkFlaggedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	dep := newTestDeposit("ethereum", "tx-6")
	require.NoError(t, repo.Create(ctx, dep))

	flagged, err := repo.MarkFlagged(ctx, dep.ID)
	require.NoError(t, err)
	assert.True(t, flagged)

	again, err := repo.MarkFlagged(ctx, dep.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestFindPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDepositRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		dep := newTestDeposit("ethereum", "tx-page-"+string(rune('a'+i)))
		require.NoError(t, repo.Create(ctx, dep))
	}

	rows, total, err := repo.Find(ctx, DepositQuery{UserID: "user-1", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, rows, 2)

	rows, total, err = repo.Find(ctx, DepositQuery{UserID: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, rows)
}
