package services

import (
	"context"
	"log"

	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService owns the wrapped-asset supply ledger. Every mint and burn
// is a single atomic UPDATE in the repository; this layer adds metrics and
// exposes the Tx variants so the settlement orchestrator can bind a ledger
// movement to a status flag in one transaction.
type LedgerService struct {
	assetRepo repository.WrappedAssetRepository
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(assetRepo repository.WrappedAssetRepository) *LedgerService {
	return &LedgerService{assetRepo: assetRepo}
}

// Mint increases supply and minted totals for symbol
func (s *LedgerService) Mint(ctx context.Context, symbol string, amount decimal.Decimal) error {
	if err := s.assetRepo.Mint(ctx, symbol, amount); err != nil {
		return err
	}
	metrics.WrappedMinted.WithLabelValues(symbol).Add(amountAsFloat(amount))
	log.Printf("🪙 Minted %s %s", amount, symbol)
	return nil
}

// Burn decreases supply and increases burned totals for symbol
func (s *LedgerService) Burn(ctx context.Context, symbol string, amount decimal.Decimal) error {
	if err := s.assetRepo.Burn(ctx, symbol, amount); err != nil {
		return err
	}
	metrics.WrappedBurned.WithLabelValues(symbol).Add(amountAsFloat(amount))
	log.Printf("🔥 Burned %s %s", amount, symbol)
	return nil
}

// MintTx mints inside the caller's transaction. Metrics are the caller's
// responsibility since the transaction may still roll back.
func (s *LedgerService) MintTx(tx *gorm.DB, symbol string, amount decimal.Decimal) error {
	return s.assetRepo.MintTx(tx, symbol, amount)
}

// BurnTx burns inside the caller's transaction
func (s *LedgerService) BurnTx(tx *gorm.DB, symbol string, amount decimal.Decimal) error {
	return s.assetRepo.BurnTx(tx, symbol, amount)
}

// Get returns the ledger row for one wrapped symbol
func (s *LedgerService) Get(ctx context.Context, symbol string) (*models.WrappedAsset, error) {
	return s.assetRepo.Get(ctx, symbol)
}

// List returns the full supply ledger
func (s *LedgerService) List(ctx context.Context) ([]*models.WrappedAsset, error) {
	return s.assetRepo.List(ctx)
}

func amountAsFloat(amount decimal.Decimal) float64 {
	f, _ := amount.Float64()
	return f
}
