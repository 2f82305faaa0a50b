package repository

import (
	"context"
	"errors"
	"time"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WrappedAssetRepository defines the interface for the supply ledger.
// Mint and Burn are single atomic UPDATE statements; supply is recomputed
// in the same statement, so the invariant supply == minted - burned holds
// after every call without a read-modify-write cycle.
type WrappedAssetRepository interface {
	Get(ctx context.Context, symbol string) (*models.WrappedAsset, error)
	List(ctx context.Context) ([]*models.WrappedAsset, error)
	Mint(ctx context.Context, symbol string, amount decimal.Decimal) error
	Burn(ctx context.Context, symbol string, amount decimal.Decimal) error
	MintTx(tx *gorm.DB, symbol string, amount decimal.Decimal) error
	BurnTx(tx *gorm.DB, symbol string, amount decimal.Decimal) error
}

type wrappedAssetRepository struct {
	db *gorm.DB
}

// NewWrappedAssetRepository creates a new WrappedAssetRepository instance
func NewWrappedAssetRepository(db *gorm.DB) WrappedAssetRepository {
	return &wrappedAssetRepository{db: db}
}

// Get retrieves a wrapped asset by symbol
func (r *wrappedAssetRepository) Get(ctx context.Context, symbol string) (*models.WrappedAsset, error) {
	var asset models.WrappedAsset
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// List retrieves all wrapped assets
func (r *wrappedAssetRepository) List(ctx context.Context) ([]*models.WrappedAsset, error) {
	var assets []*models.WrappedAsset
	err := r.db.WithContext(ctx).Order("symbol ASC").Find(&assets).Error
	return assets, err
}

// Mint adds amount to minted and supply
func (r *wrappedAssetRepository) Mint(ctx context.Context, symbol string, amount decimal.Decimal) error {
	return r.MintTx(r.db.WithContext(ctx), symbol, amount)
}

// Burn subtracts amount from supply and adds it to burned
func (r *wrappedAssetRepository) Burn(ctx context.Context, symbol string, amount decimal.Decimal) error {
	return r.BurnTx(r.db.WithContext(ctx), symbol, amount)
}

// MintTx runs the mint update inside the caller's transaction
func (r *wrappedAssetRepository) MintTx(tx *gorm.DB, symbol string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Permanentf("ledger.mint", "amount must be positive, got %s", amount)
	}

	result := tx.
		Model(&models.WrappedAsset{}).
		Where("symbol = ?", symbol).
		Updates(map[string]interface{}{
			"total_minted": gorm.Expr("total_minted + ?", amount),
			"total_supply": gorm.Expr("total_supply + ?", amount),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Permanentf("ledger.mint", "unknown wrapped asset %s", symbol)
	}
	return nil
}

// BurnTx runs the burn update inside the caller's transaction. The supply
// guard lives in the WHERE clause: zero rows affected on an existing
// symbol means the burn would overdraw the supply.
func (r *wrappedAssetRepository) BurnTx(tx *gorm.DB, symbol string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Permanentf("ledger.burn", "amount must be positive, got %s", amount)
	}

	result := tx.
		Model(&models.WrappedAsset{}).
		Where("symbol = ? AND total_supply >= ?", symbol, amount).
		Updates(map[string]interface{}{
			"total_burned": gorm.Expr("total_burned + ?", amount),
			"total_supply": gorm.Expr("total_supply - ?", amount),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var asset models.WrappedAsset
		if err := tx.Where("symbol = ?", symbol).First(&asset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Permanentf("ledger.burn", "unknown wrapped asset %s", symbol)
			}
			return err
		}
		return apperrors.InsufficientSupply("ledger.burn", symbol)
	}
	return nil
}
