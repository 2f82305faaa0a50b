package repository

import (
	"context"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NetworkStatusRepository defines the interface for NetworkStatus data access
type NetworkStatusRepository interface {
	Upsert(ctx context.Context, status *models.NetworkStatus) error
	List(ctx context.Context) ([]*models.NetworkStatus, error)
	Get(ctx context.Context, network string) (*models.NetworkStatus, error)
}

type networkStatusRepository struct {
	db *gorm.DB
}

// NewNetworkStatusRepository creates a new NetworkStatusRepository instance
func NewNetworkStatusRepository(db *gorm.DB) NetworkStatusRepository {
	return &networkStatusRepository{db: db}
}

// Upsert writes the latest probe result for a network
func (r *networkStatusRepository) Upsert(ctx context.Context, status *models.NetworkStatus) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "network"}},
			DoUpdates: clause.AssignmentColumns([]string{"online", "block_height", "last_checked", "error_msg"}),
		}).
		Create(status).Error
}

// List retrieves the status of every probed network
func (r *networkStatusRepository) List(ctx context.Context) ([]*models.NetworkStatus, error) {
	var statuses []*models.NetworkStatus
	err := r.db.WithContext(ctx).Order("network ASC").Find(&statuses).Error
	return statuses, err
}

// Get retrieves a single network's status
func (r *networkStatusRepository) Get(ctx context.Context, network string) (*models.NetworkStatus, error) {
	var status models.NetworkStatus
	err := r.db.WithContext(ctx).Where("network = ?", network).First(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}
