package db

import (
	"errors"
	"log"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	dsn := config.AppConfig.Database.DSN
	log.Printf("Connecting to database: %s", dsn)

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		DisableAutomaticPing:                     true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	log.Println("✅ Database connected successfully")

	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	if err := SeedWrappedAssets(DB); err != nil {
		log.Fatalf("Failed to seed wrapped assets: %v", err)
	}

	log.Println("✅ Database schema migrated successfully")
}

// Migrate applies the schema for all bridge models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DepositAddress{},
		&models.Deposit{},
		&models.Withdrawal{},
		&models.WrappedAsset{},
		&models.NetworkStatus{},
		&models.ConsistencyIncident{},
	)
}

// SeedWrappedAssets creates a zero-supply ledger row for every enabled
// network's wrapped symbol. Existing rows are left untouched.
func SeedWrappedAssets(db *gorm.DB) error {
	if config.AppConfig == nil {
		return nil
	}

	for networkName, network := range config.AppConfig.Blockchain.Networks {
		if !network.Enabled {
			continue
		}
		symbol := network.WrappedSymbol()

		var existing models.WrappedAsset
		err := db.Where("symbol = ?", symbol).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		asset := models.WrappedAsset{
			Symbol:          symbol,
			OriginalNetwork: networkName,
			TotalSupply:     decimal.Zero,
			TotalMinted:     decimal.Zero,
			TotalBurned:     decimal.Zero,
			UpdatedAt:       time.Now(),
		}
		if err := db.Create(&asset).Error; err != nil {
			return err
		}
		log.Printf("✅ Seeded wrapped asset %s for network %s", symbol, networkName)
	}

	return nil
}
