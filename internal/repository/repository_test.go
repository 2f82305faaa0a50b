package repository

import (
	"testing"
	"time"

	"bridge-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.DepositAddress{},
		&models.Deposit{},
		&models.Withdrawal{},
		&models.WrappedAsset{},
		&models.NetworkStatus{},
		&models.ConsistencyIncident{},
	))
	return db
}

func newTestDeposit(network, txHash string) *models.Deposit {
	return &models.Deposit{
		ID:                    uuid.New().String(),
		UserID:                "user-1",
		Network:               network,
		ToAddress:             "addr-1",
		TxHash:                txHash,
		TokenSymbol:           "ETH",
		Amount:                decimal.RequireFromString("1.5"),
		RequiredConfirmations: 12,
		Status:                models.DepositStatusPending,
		CreatedAt:             time.Now(),
	}
}

func newTestWithdrawal(userID string) *models.Withdrawal {
	return &models.Withdrawal{
		ID:          uuid.New().String(),
		UserID:      userID,
		Network:     "ethereum",
		ToAddress:   "0xdest",
		TokenSymbol: "rETH",
		Amount:      decimal.RequireFromString("2"),
		Fee:         decimal.RequireFromString("0.002"),
		Status:      models.WithdrawalStatusPending,
		CreatedAt:   time.Now(),
	}
}
