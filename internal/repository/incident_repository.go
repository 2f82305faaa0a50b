package repository

import (
	"context"
	"time"

	"bridge-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IncidentRepository defines the interface for the operator incident queue
type IncidentRepository interface {
	Raise(ctx context.Context, kind models.IncidentKind, refID, network, symbol string, amount decimal.Decimal, detail string) (bool, error)
	ListUnresolved(ctx context.Context) ([]*models.ConsistencyIncident, error)
	Resolve(ctx context.Context, id string) (bool, error)
}

type incidentRepository struct {
	db *gorm.DB
}

// NewIncidentRepository creates a new IncidentRepository instance
func NewIncidentRepository(db *gorm.DB) IncidentRepository {
	return &incidentRepository{db: db}
}

// Raise creates an incident unless an unresolved one already exists for the
// same (kind, ref). Returns true when a new incident was recorded.
func (r *incidentRepository) Raise(ctx context.Context, kind models.IncidentKind, refID, network, symbol string, amount decimal.Decimal, detail string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConsistencyIncident{}).
		Where("kind = ? AND ref_id = ? AND resolved = ?", kind, refID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	incident := models.ConsistencyIncident{
		ID:        uuid.New().String(),
		Kind:      kind,
		RefID:     refID,
		Network:   network,
		Symbol:    symbol,
		Amount:    amount,
		Detail:    detail,
		Resolved:  false,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&incident).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ListUnresolved retrieves all open incidents, oldest first
func (r *incidentRepository) ListUnresolved(ctx context.Context) ([]*models.ConsistencyIncident, error) {
	var incidents []*models.ConsistencyIncident
	err := r.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at ASC").
		Find(&incidents).Error
	return incidents, err
}

// Resolve closes an incident once
func (r *incidentRepository) Resolve(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ConsistencyIncident{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
