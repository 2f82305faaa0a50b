package db

import (
	"testing"

	"bridge-backend/internal/config"
	"bridge-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
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

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	return db
}

func TestSeedWrappedAssetsSkipsDisabledNetworks(t *testing.T) {
	prev := config.AppConfig
	config.AppConfig = &config.Config{
		Blockchain: config.BlockchainConfig{
			Networks: map[string]config.NetworkConfig{
				"testnet": {Symbol: "TN", Enabled: true},
				"oldnet":  {Symbol: "ON", Enabled: false},
			},
		},
	}
	t.Cleanup(func() { config.AppConfig = prev })

	db := setupTestDB(t)
	require.NoError(t, SeedWrappedAssets(db))

	var assets []models.WrappedAsset
	require.NoError(t, db.Find(&assets).Error)
	require.Len(t, assets, 1)
	assert.Equal(t, "rTN", assets[0].Symbol)
	assert.Equal(t, "testnet", assets[0].OriginalNetwork)
	assert.True(t, assets[0].TotalSupply.IsZero())

	// Re-seeding leaves the existing row untouched.
	require.NoError(t, db.Model(&models.WrappedAsset{}).
		Where("symbol = ?", "rTN").
		Update("total_supply", "5").Error)
	require.NoError(t, SeedWrappedAssets(db))

	var asset models.WrappedAsset
	require.NoError(t, db.First(&asset, "symbol = ?", "rTN").Error)
	assert.True(t, asset.TotalSupply.Equal(decimal.RequireFromString("5")))

	require.NoError(t, db.Find(&assets).Error)
	assert.Len(t, assets, 1)
}
