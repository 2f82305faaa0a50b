package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAsset(t *testing.T, db *gorm.DB, symbol string) {
	t.Helper()
	require.NoError(t, db.Create(&models.WrappedAsset{
		Symbol:          symbol,
		OriginalNetwork: "ethereum",
		TotalSupply:     decimal.Zero,
		TotalMinted:     decimal.Zero,
		TotalBurned:     decimal.Zero,
		UpdatedAt:       time.Now(),
	}).Error)
}

func TestMintBurnLedgerInvariant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWrappedAssetRepository(db)
	ctx := context.Background()
	seedAsset(t, db, "rETH")

	require.NoError(t, repo.Mint(ctx, "rETH", decimal.RequireFromString("5")))
	require.NoError(t, repo.Mint(ctx, "rETH", decimal.RequireFromString("2.5")))
	require.NoError(t, repo.Burn(ctx, "rETH", decimal.RequireFromString("3")))

	asset, err := repo.Get(ctx, "rETH")
	require.NoError(t, err)
	assert.True(t, asset.TotalMinted.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, asset.TotalBurned.Equal(decimal.RequireFromString("3")))
	assert.True(t, asset.TotalSupply.Equal(asset.TotalMinted.Sub(asset.TotalBurned)))
}

func TestBurnOverdraw(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWrappedAssetRepository(db)
	ctx := context.Background()
	seedAsset(t, db, "rBTC")

	require.NoError(t, repo.Mint(ctx, "rBTC", decimal.RequireFromString("1")))

	err := repo.Burn(ctx, "rBTC", decimal.RequireFromString("1.00000001"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientSupply, apperrors.Classify(err))

	// The failed burn must not touch the ledger.
	asset, err := repo.Get(ctx, "rBTC")
	require.NoError(t, err)
	assert.True(t, asset.TotalSupply.Equal(decimal.RequireFromString("1")))
	assert.True(t, asset.TotalBurned.IsZero())
}

func TestMintUnknownSymbol(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWrappedAssetRepository(db)
	ctx := context.Background()

	err := repo.Mint(ctx, "rNOPE", decimal.RequireFromString("1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))

	err = repo.Burn(ctx, "rNOPE", decimal.RequireFromString("1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
}

func TestConcurrentMintBurnKeepsLedgerConsistent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWrappedAssetRepository(db)
	ctx := context.Background()
	seedAsset(t, db, "rETH")

	// Enough head start so no burn can hit the supply guard.
	require.NoError(t, repo.Mint(ctx, "rETH", decimal.RequireFromString("100")))

	const workers = 4
	const opsPerWorker = 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers*2*opsPerWorker)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerWorker; j++ {
				errCh <- repo.Mint(ctx, "rETH", decimal.RequireFromString("1"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerWorker; j++ {
				errCh <- repo.Burn(ctx, "rETH", decimal.RequireFromString("1"))
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	asset, err := repo.Get(ctx, "rETH")
	require.NoError(t, err)
	assert.True(t, asset.TotalMinted.Equal(decimal.RequireFromString("140")))
	assert.True(t, asset.TotalBurned.Equal(decimal.RequireFromString("40")))
	assert.True(t, asset.TotalSupply.Equal(asset.TotalMinted.Sub(asset.TotalBurned)))
}

func TestConcurrentBurnsRespectSupplyGuard(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWrappedAssetRepository(db)
	ctx := context.Background()
	seedAsset(t, db, "rBTC")

	// Supply covers exactly three of the eight attempted burns.
	require.NoError(t, repo.Mint(ctx, "rBTC", decimal.RequireFromString("3")))

	const attempts = 8
	var wg sync.WaitGroup
	errCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- repo.Burn(ctx, "rBTC", decimal.RequireFromString("1"))
		}()
	}
	wg.Wait()
	close(errCh)

	succeeded := 0
	for err := range errCh {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperrors.KindInsufficientSupply, apperrors.Classify(err))
	}
	assert.Equal(t, 3, succeeded)

	asset, err := repo.Get(ctx, "rBTC")
	require.NoError(t, err)
	assert.True(t, asset.TotalSupply.IsZero())
	assert.True(t, asset.TotalBurned.Equal(decimal.RequireFromString("3")))
}

func TestMintRejectsNonPositive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWrappedAssetRepository(db)
	ctx := context.Background()
	seedAsset(t, db, "rSOL")

	require.Error(t, repo.Mint(ctx, "rSOL", decimal.Zero))
	require.Error(t, repo.Burn(ctx, "rSOL", decimal.RequireFromString("-1")))
}
