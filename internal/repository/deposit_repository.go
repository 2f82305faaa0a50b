package repository

import (
	"context"
	"time"

	"bridge-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DepositQuery filters for user-facing deposit listings
type DepositQuery struct {
	UserID   string
	Network  string
	Status   models.DepositStatus
	Page     int
	PageSize int
}

// DepositRepository defines the interface for Deposit data access
type DepositRepository interface {
	Create(ctx context.Context, deposit *models.Deposit) error
	GetByID(ctx context.Context, id string) (*models.Deposit, error)
	GetByTxHash(ctx context.Context, txHash string) (*models.Deposit, error)
	Find(ctx context.Context, q DepositQuery) ([]*models.Deposit, int64, error)
	FindPending(ctx context.Context) ([]*models.Deposit, error)
	FindConfirmedUnminted(ctx context.Context, olderThan time.Duration) ([]*models.Deposit, error)
	HasRecentDeposit(ctx context.Context, network, toAddress string, amount decimal.Decimal, window time.Duration) (bool, error)
	UpdateConfirmations(ctx context.Context, id string, confirmations int64) error
	MarkConfirmed(ctx context.Context, id string) (bool, error)
	MarkMintedTx(tx *gorm.DB, id string, wrappedAmount decimal.Decimal) (bool, error)
	MarkFailed(ctx context.Context, id string) error
	MarkFlagged(ctx context.Context, id string) (bool, error)
}

type depositRepository struct {
	db *gorm.DB
}

// NewDepositRepository creates a new DepositRepository instance
func NewDepositRepository(db *gorm.DB) DepositRepository {
	return &depositRepository{db: db}
}

// Create inserts a new deposit. The unique index on tx_hash rejects
// duplicate detection of the same transfer.
func (r *depositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

// GetByID retrieves a deposit by ID
func (r *depositRepository) GetByID(ctx context.Context, id string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&deposit).Error
	if err != nil {
		return nil, err
	}
	return &deposit, nil
}

// GetByTxHash retrieves a deposit by transaction hash
func (r *depositRepository) GetByTxHash(ctx context.Context, txHash string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&deposit).Error
	if err != nil {
		return nil, err
	}
	return &deposit, nil
}

// Find lists deposits with filters and pagination
func (r *depositRepository) Find(ctx context.Context, q DepositQuery) ([]*models.Deposit, int64, error) {
	var deposits []*models.Deposit
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Deposit{})
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.Network != "" {
		query = query.Where("network = ?", q.Network)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	err := query.
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&deposits).Error

	return deposits, total, err
}

// FindPending retrieves all deposits still accumulating confirmations
func (r *depositRepository) FindPending(ctx context.Context) ([]*models.Deposit, error) {
	var deposits []*models.Deposit
	err := r.db.WithContext(ctx).
		Where("status = ?", models.DepositStatusPending).
		Order("created_at ASC").
		Find(&deposits).Error
	return deposits, err
}

// FindConfirmedUnminted retrieves confirmed deposits whose mint flag never
// flipped inside the grace window. Reconciliation input.
func (r *depositRepository) FindConfirmedUnminted(ctx context.Context, olderThan time.Duration) ([]*models.Deposit, error) {
	var deposits []*models.Deposit
	cutoff := time.Now().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("status = ? AND wrapped_minted = ? AND confirmed_at < ?", models.DepositStatusConfirmed, false, cutoff).
		Find(&deposits).Error
	return deposits, err
}

// HasRecentDeposit reports whether a deposit with the same destination and
// amount was recorded inside the window. Dedup guard for synthesized
// balance-delta detections that have no real tx hash.
func (r *depositRepository) HasRecentDeposit(ctx context.Context, network, toAddress string, amount decimal.Decimal, window time.Duration) (bool, error) {
	var count int64
	cutoff := time.Now().Add(-window)
	err := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("network = ? AND to_address = ? AND amount = ? AND created_at > ?", network, toAddress, amount, cutoff).
		Count(&count).Error
	return count > 0, err
}

// UpdateConfirmations raises the stored confirmation count. The WHERE
// clause keeps the count monotonic: a lagging RPC read never lowers it.
func (r *depositRepository) UpdateConfirmations(ctx context.Context, id string, confirmations int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND confirmations < ?", id, confirmations).
		Update("confirmations", confirmations).Error
}

// MarkConfirmed flips pending to confirmed exactly once. Returns true only
// for the winning caller; concurrent pollers observing the same threshold
// crossing get false.
func (r *depositRepository) MarkConfirmed(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, models.DepositStatusPending).
		Updates(map[string]interface{}{
			"status":       models.DepositStatusConfirmed,
			"confirmed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkMintedTx flips the mint flag inside the caller's transaction so flag
// and ledger mint commit or roll back together. Returns true only for the
// first caller; the CAS makes a double mint unrepresentable.
func (r *depositRepository) MarkMintedTx(tx *gorm.DB, id string, wrappedAmount decimal.Decimal) (bool, error) {
	now := time.Now()
	result := tx.
		Model(&models.Deposit{}).
		Where("id = ? AND status = ? AND wrapped_minted = ?", id, models.DepositStatusConfirmed, false).
		Updates(map[string]interface{}{
			"wrapped_minted": true,
			"wrapped_amount": wrappedAmount,
			"minted_at":      now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFailed records a chain-side rejection
func (r *depositRepository) MarkFailed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, models.DepositStatusPending).
		Updates(map[string]interface{}{
			"status": models.DepositStatusFailed,
		}).Error
}

// MarkFlagged sets the manual-review flag once. Returns true only when the
// flag was newly set, so the incident is raised a single time.
func (r *depositRepository) MarkFlagged(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND flagged_at IS NULL", id).
		Update("flagged_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
