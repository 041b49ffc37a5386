package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketmatch/internal/domain/entity"
)

type ISupplyRepository interface {
	Create(ctx context.Context, supply entity.Supply) (entity.Supply, error)
	FindActive(ctx context.Context, id uuid.UUID) (entity.Supply, error)
	FindByOrg(ctx context.Context, orgID uuid.UUID) ([]entity.Supply, error)
	FindActiveCandidates(ctx context.Context, excludeOrgID uuid.UUID) ([]entity.Supply, error)
	Patch(ctx context.Context, id, orgID uuid.UUID, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, id, orgID uuid.UUID) error
	SetRating(ctx context.Context, id uuid.UUID, rating float64) error
	DeactivateExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type SupplyRepository struct {
	gormDB *gorm.DB
}

func NewSupplyRepository(db *gorm.DB) ISupplyRepository {
	return &SupplyRepository{
		gormDB: db,
	}
}

func (r *SupplyRepository) Create(ctx context.Context, supply entity.Supply) (entity.Supply, error) {
	if err := r.gormDB.WithContext(ctx).Create(&supply).Error; err != nil {
		return entity.Supply{}, err
	}
	return supply, nil
}

// FindActive loads one searchable supply with its organisation and
// category. Inactive or soft-deleted rows behave as absent.
func (r *SupplyRepository) FindActive(ctx context.Context, id uuid.UUID) (entity.Supply, error) {
	var supply entity.Supply
	if err := r.gormDB.WithContext(ctx).
		Preload("Org").Preload("Category").
		Where("id = ? AND is_active = ? AND deleted_at IS NULL", id, true).
		Take(&supply).Error; err != nil {
		return entity.Supply{}, err
	}
	return supply, nil
}

func (r *SupplyRepository) FindByOrg(ctx context.Context, orgID uuid.UUID) ([]entity.Supply, error) {
	var supplies []entity.Supply
	if err := r.gormDB.WithContext(ctx).
		Preload("Category").
		Where("org_id = ? AND deleted_at IS NULL", orgID).
		Order("created_at DESC").
		Find(&supplies).Error; err != nil {
		return nil, err
	}
	return supplies, nil
}

// FindActiveCandidates returns every searchable supply belonging to any
// other organisation. Self-matches are excluded at the query level.
func (r *SupplyRepository) FindActiveCandidates(ctx context.Context, excludeOrgID uuid.UUID) ([]entity.Supply, error) {
	var supplies []entity.Supply
	if err := r.gormDB.WithContext(ctx).
		Preload("Org").Preload("Category").
		Where("org_id != ? AND is_active = ? AND deleted_at IS NULL", excludeOrgID, true).
		Find(&supplies).Error; err != nil {
		return nil, err
	}
	return supplies, nil
}

func (r *SupplyRepository) Patch(ctx context.Context, id, orgID uuid.UUID, updates map[string]interface{}) error {
	res := r.gormDB.WithContext(ctx).Model(&entity.Supply{}).
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

func (r *SupplyRepository) SoftDelete(ctx context.Context, id, orgID uuid.UUID) error {
	return r.Patch(ctx, id, orgID, map[string]interface{}{
		"deleted_at": gorm.Expr("NOW()"),
		"is_active":  false,
	})
}

// DeactivateExpired flips supplies whose expiry date has passed to
// inactive and returns their ids so callers can invalidate caches.
func (r *SupplyRepository) DeactivateExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.gormDB.WithContext(ctx).Model(&entity.Supply{}).
		Where("is_active = ? AND deleted_at IS NULL AND expiry_date IS NOT NULL AND expiry_date < ?", true, now).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.gormDB.WithContext(ctx).Model(&entity.Supply{}).
		Where("id IN ?", ids).
		Update("is_active", false).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *SupplyRepository) SetRating(ctx context.Context, id uuid.UUID, rating float64) error {
	res := r.gormDB.WithContext(ctx).Model(&entity.Supply{}).
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
