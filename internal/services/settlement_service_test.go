package services

import (
	"context"
	"testing"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/chains"
	"bridge-backend/internal/config"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSettlementFixture(t *testing.T) (*SettlementService, *gorm.DB, *fakeAdapter, *fakeTrading) {
	t.Helper()
	installTestConfig(t)

	db := setupTestDB(t)
	adapter := newFakeAdapter("testnet")
	trading := newFakeTrading()

	svc := NewSettlementService(
		db,
		repository.NewDepositRepository(db),
		repository.NewWithdrawalRepository(db),
		repository.NewWrappedAssetRepository(db),
		repository.NewIncidentRepository(db),
		trading,
		chains.NewRegistryFromAdapters(map[string]chains.Adapter{"testnet": adapter}),
		nil,
		&config.WithdrawConfig{SendRetries: 1},
	)
	return svc, db, adapter, trading
}

func TestOnDepositConfirmedMintsOnce(t *testing.T) {
	svc, db, _, trading := newSettlementFixture(t)
	ctx := context.Background()

	seedTestAsset(t, db, "rTN")
	dep := seedConfirmedDeposit(t, db, decimal.RequireFromString("2.5"))

	require.NoError(t, svc.OnDepositConfirmed(ctx, dep.ID))
	// Duplicate callback loses the mint CAS and is a no-op.
	require.NoError(t, svc.OnDepositConfirmed(ctx, dep.ID))

	assert.Equal(t, 1, trading.credits)

	balance, err := trading.GetBalance(ctx, "user-1", "rTN")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("2.5")))

	var asset models.WrappedAsset
	require.NoError(t, db.Where("symbol = ?", "rTN").First(&asset).Error)
	assert.True(t, asset.TotalSupply.Equal(decimal.RequireFromString("2.5")))

	var got models.Deposit
	require.NoError(t, db.Where("id = ?", dep.ID).First(&got).Error)
	assert.True(t, got.WrappedMinted)
}

func TestOnDepositConfirmedCreditFailureRaisesIncident(t *testing.T) {
	svc, db, _, trading := newSettlementFixture(t)
	ctx := context.Background()

	seedTestAsset(t, db, "rTN")
	dep := seedConfirmedDeposit(t, db, decimal.RequireFromString("1"))

	trading.creditErr = apperrors.Transient("trading.credit", assert.AnError)
	require.Error(t, svc.OnDepositConfirmed(ctx, dep.ID))

	// The mint stands; the missing credit becomes an operator incident.
	var asset models.WrappedAsset
	require.NoError(t, db.Where("symbol = ?", "rTN").First(&asset).Error)
	assert.True(t, asset.TotalSupply.Equal(decimal.RequireFromString("1")))

	var incidents []models.ConsistencyIncident
	require.NoError(t, db.Where("kind = ?", models.IncidentLedgerMismatch).Find(&incidents).Error)
	require.Len(t, incidents, 1)
	assert.Equal(t, dep.ID, incidents[0].RefID)
}

func TestManualConfirmRejectsNonPending(t *testing.T) {
	svc, db, _, _ := newSettlementFixture(t)
	ctx := context.Background()

	seedTestAsset(t, db, "rTN")
	dep := seedConfirmedDeposit(t, db, decimal.RequireFromString("1"))

	err := svc.ManualConfirm(ctx, dep.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
}

func TestWithdrawValidation(t *testing.T) {
	svc, _, _, trading := newSettlementFixture(t)
	ctx := context.Background()

	base := WithdrawRequest{
		UserID:    "user-1",
		Network:   "testnet",
		Symbol:    "rTN",
		Amount:    decimal.RequireFromString("1"),
		ToAddress: "0xdest",
	}

	t.Run("unknown network", func(t *testing.T) {
		req := base
		req.Network = "nope"
		_, err := svc.Withdraw(ctx, req)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
	})

	t.Run("wrong symbol", func(t *testing.T) {
		req := base
		req.Symbol = "TN"
		_, err := svc.Withdraw(ctx, req)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
	})

	t.Run("invalid address", func(t *testing.T) {
		req := base
		req.ToAddress = "invalid"
		_, err := svc.Withdraw(ctx, req)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
	})

	t.Run("below minimum", func(t *testing.T) {
		req := base
		req.Amount = decimal.RequireFromString("0.05")
		_, err := svc.Withdraw(ctx, req)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
	})

	t.Run("above maximum", func(t *testing.T) {
		req := base
		req.Amount = decimal.RequireFromString("101")
		_, err := svc.Withdraw(ctx, req)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		trading.setBalance("user-1", "rTN", decimal.RequireFromString("1"))
		// 1 rTN cannot cover 1 plus the 0.01 fee.
		_, err := svc.Withdraw(ctx, base)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindInsufficientBalance, apperrors.Classify(err))
	})
}

func TestWithdrawDebitsAmountPlusFee(t *testing.T) {
	svc, db, _, trading := newSettlementFixture(t)
	ctx := context.Background()

	trading.setBalance("user-1", "rTN", decimal.RequireFromString("10"))

	withdrawal, err := svc.Withdraw(ctx, WithdrawRequest{
		UserID:    "user-1",
		Network:   "testnet",
		Symbol:    "rTN",
		Amount:    decimal.RequireFromString("2"),
		ToAddress: "0xdest",
	})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)
	assert.True(t, withdrawal.Fee.Equal(decimal.RequireFromString("0.01")))

	balance, err := trading.GetBalance(ctx, "user-1", "rTN")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("7.99")), "got %s", balance)

	var got models.Withdrawal
	require.NoError(t, db.Where("id = ?", withdrawal.ID).First(&got).Error)
	assert.Equal(t, models.WithdrawalStatusPending, got.Status)
}

func TestWithdrawHourlyLimit(t *testing.T) {
	installTestConfig(t)
	db := setupTestDB(t)
	adapter := newFakeAdapter("testnet")
	trading := newFakeTrading()
	svc := NewSettlementService(
		db,
		repository.NewDepositRepository(db),
		repository.NewWithdrawalRepository(db),
		repository.NewWrappedAssetRepository(db),
		repository.NewIncidentRepository(db),
		trading,
		chains.NewRegistryFromAdapters(map[string]chains.Adapter{"testnet": adapter}),
		nil,
		&config.WithdrawConfig{HourlyLimit: "3"},
	)
	ctx := context.Background()
	trading.setBalance("user-1", "rTN", decimal.RequireFromString("100"))

	req := WithdrawRequest{
		UserID:    "user-1",
		Network:   "testnet",
		Symbol:    "rTN",
		Amount:    decimal.RequireFromString("2"),
		ToAddress: "0xdest",
	}
	_, err := svc.Withdraw(ctx, req)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, req)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPermanent, apperrors.Classify(err))
}

func TestProcessWithdrawalCompletes(t *testing.T) {
	svc, db, adapter, trading := newSettlementFixture(t)
	ctx := context.Background()

	seedTestAsset(t, db, "rTN")
	require.NoError(t, repository.NewWrappedAssetRepository(db).Mint(ctx, "rTN", decimal.RequireFromString("10")))
	trading.setBalance("user-1", "rTN", decimal.RequireFromString("10"))

	withdrawal, err := svc.Withdraw(ctx, WithdrawRequest{
		UserID:    "user-1",
		Network:   "testnet",
		Symbol:    "rTN",
		Amount:    decimal.RequireFromString("2"),
		ToAddress: "0xdest",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessWithdrawal(ctx, withdrawal.ID))

	var got models.Withdrawal
	require.NoError(t, db.Where("id = ?", withdrawal.ID).First(&got).Error)
	assert.Equal(t, models.WithdrawalStatusCompleted, got.Status)
	assert.True(t, got.WrappedBurned)
	assert.Equal(t, "0xsent", got.TxHash)
	assert.Equal(t, 1, adapter.sends)

	// Only the amount is burned; the fee stays wrapped.
	var asset models.WrappedAsset
	require.NoError(t, db.Where("symbol = ?", "rTN").First(&asset).Error)
	assert.True(t, asset.TotalSupply.Equal(decimal.RequireFromString("8")), "got %s", asset.TotalSupply)

	// A second processor run is a no-op, nothing left to claim.
	require.NoError(t, svc.ProcessWithdrawal(ctx, withdrawal.ID))
	assert.Equal(t, 1, adapter.sends)
}

func TestProcessWithdrawalSendFailureRaisesIncident(t *testing.T) {
	svc, db, adapter, trading := newSettlementFixture(t)
	ctx := context.Background()

	seedTestAsset(t, db, "rTN")
	require.NoError(t, repository.NewWrappedAssetRepository(db).Mint(ctx, "rTN", decimal.RequireFromString("10")))
	trading.setBalance("user-1", "rTN", decimal.RequireFromString("10"))

	withdrawal, err := svc.Withdraw(ctx, WithdrawRequest{
		UserID:    "user-1",
		Network:   "testnet",
		Symbol:    "rTN",
		Amount:    decimal.RequireFromString("2"),
		ToAddress: "0xdest",
	})
	require.NoError(t, err)

	adapter.sendErr = apperrors.Permanent("chain.send", assert.AnError)
	require.Error(t, svc.ProcessWithdrawal(ctx, withdrawal.ID))

	var got models.Withdrawal
	require.NoError(t, db.Where("id = ?", withdrawal.ID).First(&got).Error)
	assert.Equal(t, models.WithdrawalStatusFailed, got.Status)
	assert.True(t, got.WrappedBurned, "burned flag survives the failure")

	// The burn stands; compensation is an operator decision.
	var asset models.WrappedAsset
	require.NoError(t, db.Where("symbol = ?", "rTN").First(&asset).Error)
	assert.True(t, asset.TotalSupply.Equal(decimal.RequireFromString("8")))

	var incidents []models.ConsistencyIncident
	require.NoError(t, db.Where("kind = ?", models.IncidentBurnedUnsent).Find(&incidents).Error)
	require.Len(t, incidents, 1)
	assert.Equal(t, withdrawal.ID, incidents[0].RefID)
}

func TestProcessWithdrawalInsufficientSupplyRefunds(t *testing.T) {
	svc, db, adapter, trading := newSettlementFixture(t)
	ctx := context.Background()

	// Ledger only holds 1 rTN, not enough for the 2 rTN burn.
	seedTestAsset(t, db, "rTN")
	require.NoError(t, repository.NewWrappedAssetRepository(db).Mint(ctx, "rTN", decimal.RequireFromString("1")))
	trading.setBalance("user-1", "rTN", decimal.RequireFromString("10"))

	withdrawal, err := svc.Withdraw(ctx, WithdrawRequest{
		UserID:    "user-1",
		Network:   "testnet",
		Symbol:    "rTN",
		Amount:    decimal.RequireFromString("2"),
		ToAddress: "0xdest",
	})
	require.NoError(t, err)

	require.Error(t, svc.ProcessWithdrawal(ctx, withdrawal.ID))

	var got models.Withdrawal
	require.NoError(t, db.Where("id = ?", withdrawal.ID).First(&got).Error)
	assert.Equal(t, models.WithdrawalStatusFailed, got.Status)
	assert.False(t, got.WrappedBurned, "transaction rollback must clear the flag")
	assert.Equal(t, 0, adapter.sends)

	// Debited balance returned in full.
	balance, err := trading.GetBalance(ctx, "user-1", "rTN")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10")), "got %s", balance)
}

func TestCancelRecreditsOnce(t *testing.T) {
	svc, db, _, trading := newSettlementFixture(t)
	ctx := context.Background()

	trading.setBalance("user-1", "rTN", decimal.RequireFromString("10"))

	withdrawal, err := svc.Withdraw(ctx, WithdrawRequest{
		UserID:    "user-1",
		Network:   "testnet",
		Symbol:    "rTN",
		Amount:    decimal.RequireFromString("2"),
		ToAddress: "0xdest",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "user-1", withdrawal.ID)
	require.NoError(t, err)

	balance, err := trading.GetBalance(ctx, "user-1", "rTN")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10")), "got %s", balance)

	var got models.Withdrawal
	require.NoError(t, db.Where("id = ?", withdrawal.ID).First(&got).Error)
	assert.Equal(t, models.WithdrawalStatusCancelled, got.Status)

	_, err = svc.Cancel(ctx, "user-1", withdrawal.ID)
	require.Error(t, err, "second cancel must lose the CAS")
}
