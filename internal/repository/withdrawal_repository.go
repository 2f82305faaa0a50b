package repository

import (
	"context"
	"time"

	"bridge-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawalQuery filters for withdrawal listings
type WithdrawalQuery struct {
	UserID   string
	Network  string
	Status   models.WithdrawalStatus
	Page     int
	PageSize int
}

// WithdrawalRepository defines the interface for Withdrawal data access
type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	GetByID(ctx context.Context, id string) (*models.Withdrawal, error)
	Find(ctx context.Context, q WithdrawalQuery) ([]*models.Withdrawal, int64, error)
	FindPendingIDs(ctx context.Context, limit int) ([]string, error)
	FindBurnedUnsent(ctx context.Context, olderThan time.Duration) ([]*models.Withdrawal, error)
	ClaimPending(ctx context.Context, id string) (bool, error)
	MarkBurned(tx *gorm.DB, id string) (bool, error)
	MarkCompleted(ctx context.Context, id, txHash string) (bool, error)
	MarkFailed(ctx context.Context, id, errorMsg string) error
	CancelPending(ctx context.Context, userID, id string) (bool, error)
	SumRequestedSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
}

type withdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance
func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

// Create inserts a new withdrawal request
func (r *withdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

// GetByID retrieves a withdrawal by ID
func (r *withdrawalRepository) GetByID(ctx context.Context, id string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&withdrawal).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// Find lists withdrawals with filters and pagination
func (r *withdrawalRepository) Find(ctx context.Context, q WithdrawalQuery) ([]*models.Withdrawal, int64, error) {
	var withdrawals []*models.Withdrawal
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Withdrawal{})
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
		Find(&withdrawals).Error

	return withdrawals, total, err
}

// FindPendingIDs lists the oldest pending withdrawal IDs up to limit
func (r *withdrawalRepository) FindPendingIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("status = ?", models.WithdrawalStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// FindBurnedUnsent lists withdrawals whose wrapped tokens were destroyed
// but whose native transfer never confirmed. Reconciliation input.
func (r *withdrawalRepository) FindBurnedUnsent(ctx context.Context, olderThan time.Duration) ([]*models.Withdrawal, error) {
	var withdrawals []*models.Withdrawal
	cutoff := time.Now().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("wrapped_burned = ? AND tx_hash = '' AND status IN ? AND created_at < ?",
			true,
			[]models.WithdrawalStatus{models.WithdrawalStatusProcessing, models.WithdrawalStatusFailed},
			cutoff).
		Find(&withdrawals).Error
	return withdrawals, err
}

// ClaimPending moves pending to processing exactly once. The losing
// processor of a concurrent claim gets false.
func (r *withdrawalRepository) ClaimPending(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
		Update("status", models.WithdrawalStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkBurned sets the burned flag inside the caller's transaction so flag
// and ledger burn commit or roll back together.
func (r *withdrawalRepository) MarkBurned(tx *gorm.DB, id string) (bool, error) {
	now := time.Now()
	result := tx.
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ? AND wrapped_burned = ?", id, models.WithdrawalStatusProcessing, false).
		Updates(map[string]interface{}{
			"wrapped_burned": true,
			"burned_at":      now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkCompleted records the native send. Completion requires a prior burn;
// the WHERE clause makes a completed-but-unburned row unrepresentable.
func (r *withdrawalRepository) MarkCompleted(ctx context.Context, id, txHash string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ? AND wrapped_burned = ?", id, models.WithdrawalStatusProcessing, true).
		Updates(map[string]interface{}{
			"status":  models.WithdrawalStatusCompleted,
			"tx_hash": txHash,
			"sent_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFailed records a terminal failure. The burned flag is deliberately
// left untouched; the compensation queue needs it.
func (r *withdrawalRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	return r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.WithdrawalStatusFailed,
			"error_msg": errorMsg,
		}).Error
}

// CancelPending cancels a withdrawal that has not been claimed yet.
// Once processing starts the burn may already be underway, so the CAS
// only matches pending rows owned by the requesting user.
func (r *withdrawalRepository) CancelPending(ctx context.Context, userID, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.WithdrawalStatusPending).
		Update("status", models.WithdrawalStatusCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SumRequestedSince totals a user's non-cancelled withdrawal amounts since
// the given time. Velocity limit input.
func (r *withdrawalRepository) SumRequestedSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	var rows []*models.Withdrawal
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at > ? AND status <> ?", userID, since, models.WithdrawalStatusCancelled).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total, nil
}
