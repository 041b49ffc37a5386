package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketmatch/internal/domain/entity"
)

type IDemandRepository interface {
	Create(ctx context.Context, demand entity.Demand) (entity.Demand, error)
	FindActive(ctx context.Context, id uuid.UUID) (entity.Demand, error)
	FindByOrg(ctx context.Context, orgID uuid.UUID) ([]entity.Demand, error)
	FindActiveCandidates(ctx context.Context, excludeOrgID uuid.UUID) ([]entity.Demand, error)
	Patch(ctx context.Context, id, orgID uuid.UUID, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, id, orgID uuid.UUID) error
	SetRating(ctx context.Context, id uuid.UUID, rating float64) error
	DeactivateLapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type DemandRepository struct {
	gormDB *gorm.DB
}

func NewDemandRepository(db *gorm.DB) IDemandRepository {
	return &DemandRepository{
		gormDB: db,
	}
}

func (r *DemandRepository) Create(ctx context.Context, demand entity.Demand) (entity.Demand, error) {
	if err := r.gormDB.WithContext(ctx).Create(&demand).Error; err != nil {
		return entity.Demand{}, err
	}
	return demand, nil
}

func (r *DemandRepository) FindActive(ctx context.Context, id uuid.UUID) (entity.Demand, error) {
	var demand entity.Demand
	if err := r.gormDB.WithContext(ctx).
		Preload("Org").Preload("Category").
		Where("id = ? AND is_active = ? AND deleted_at IS NULL", id, true).
		Take(&demand).Error; err != nil {
		return entity.Demand{}, err
	}
	return demand, nil
}

func (r *DemandRepository) FindByOrg(ctx context.Context, orgID uuid.UUID) ([]entity.Demand, error) {
	var demands []entity.Demand
	if err := r.gormDB.WithContext(ctx).
		Preload("Category").
		Where("org_id = ? AND deleted_at IS NULL", orgID).
		Order("created_at DESC").
		Find(&demands).Error; err != nil {
		return nil, err
	}
	return demands, nil
}

func (r *DemandRepository) FindActiveCandidates(ctx context.Context, excludeOrgID uuid.UUID) ([]entity.Demand, error) {
	var demands []entity.Demand
	if err := r.gormDB.WithContext(ctx).
		Preload("Org").Preload("Category").
		Where("org_id != ? AND is_active = ? AND deleted_at IS NULL", excludeOrgID, true).
		Find(&demands).Error; err != nil {
		return nil, err
	}
	return demands, nil
}

func (r *DemandRepository) Patch(ctx context.Context, id, orgID uuid.UUID, updates map[string]interface{}) error {
	res := r.gormDB.WithContext(ctx).Model(&entity.Demand{}).
		Where("id = ? AND org_id = ? AND deleted_at IS NULL", id, orgID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DemandRepository) SoftDelete(ctx context.Context, id, orgID uuid.UUID) error {
	return r.Patch(ctx, id, orgID, map[string]interface{}{
		"deleted_at": gorm.Expr("NOW()"),
		"is_active":  false,
	})
}

// DeactivateLapsed flips demands whose required-by date has passed to
// inactive and returns their ids so callers can invalidate caches.
func (r *DemandRepository) DeactivateLapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.gormDB.WithContext(ctx).Model(&entity.Demand{}).
		Where("is_active = ? AND deleted_at IS NULL AND required_by IS NOT NULL AND required_by < ?", true, now).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.gormDB.WithContext(ctx).Model(&entity.Demand{}).
		Where("id IN ?", ids).
		Update("is_active", false).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *DemandRepository) SetRating(ctx context.Context, id uuid.UUID, rating float64) error {
	res := r.gormDB.WithContext(ctx).Model(&entity.Demand{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
