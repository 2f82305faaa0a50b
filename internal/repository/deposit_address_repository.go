package repository

import (
	"context"
	"time"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
)

// DepositAddressRepository defines the interface for DepositAddress data access
type DepositAddressRepository interface {
	Create(ctx context.Context, address *models.DepositAddress) error
	GetActive(ctx context.Context, userID, network string) (*models.DepositAddress, error)
	GetByAddress(ctx context.Context, network, address string) (*models.DepositAddress, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.DepositAddress, error)
	ListAllActive(ctx context.Context) ([]*models.DepositAddress, error)
	Deactivate(ctx context.Context, id string) error
}

type depositAddressRepository struct {
	db *gorm.DB
}

// NewDepositAddressRepository creates a new DepositAddressRepository instance
func NewDepositAddressRepository(db *gorm.DB) DepositAddressRepository {
	return &depositAddressRepository{db: db}
}

// Create inserts a new deposit address. A second active row for the same
// (user, network) pair violates the unique index; callers treat that as
// "lost the create race" and read back the winner.
func (r *depositAddressRepository) Create(ctx context.Context, address *models.DepositAddress) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// GetActive retrieves the single active address for a user on a network
func (r *depositAddressRepository) GetActive(ctx context.Context, userID, network string) (*models.DepositAddress, error) {
	var address models.DepositAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND network = ? AND is_active = ?", userID, network, true).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// GetByAddress retrieves an address row by its on-chain address
func (r *depositAddressRepository) GetByAddress(ctx context.Context, network, address string) (*models.DepositAddress, error) {
	var row models.DepositAddress
	err := r.db.WithContext(ctx).
		Where("network = ? AND address = ?", network, address).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListActiveByUser retrieves all active addresses of a user
func (r *depositAddressRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.DepositAddress, error) {
	var addresses []*models.DepositAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("network ASC").
		Find(&addresses).Error
	return addresses, err
}

// ListAllActive retrieves every active address. Used to rebuild the monitor
// registry on startup.
func (r *depositAddressRepository) ListAllActive(ctx context.Context) ([]*models.DepositAddress, error) {
	var addresses []*models.DepositAddress
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&addresses).Error
	return addresses, err
}

// Deactivate clears the active flag. IsActive goes to NULL, not false, so
// the unique index frees the (user, network) slot for a replacement row.
func (r *depositAddressRepository) Deactivate(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.DepositAddress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":      nil,
			"deactivated_at": now,
		}).Error
}
