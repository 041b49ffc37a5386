package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketmatch/internal/domain/entity"
)

type ISavedMatchRepository interface {
	Upsert(ctx context.Context, match entity.SavedMatch) error
	FindByAction(ctx context.Context, orgID uuid.UUID, action string) ([]entity.SavedMatch, error)
	FindDismissedForSource(ctx context.Context, orgID uuid.UUID, sourceType string, sourceID uuid.UUID) ([]entity.SavedMatch, error)
}

type SavedMatchRepository struct {
	gormDB *gorm.DB
}

func NewSavedMatchRepository(db *gorm.DB) ISavedMatchRepository {
	return &SavedMatchRepository{
		gormDB: db,
	}
}

// Upsert writes one decision per composite key; resubmitting the same
// pair overwrites action and score, last write wins.
func (r *SavedMatchRepository) Upsert(ctx context.Context, match entity.SavedMatch) error {
	return r.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "org_id"}, {Name: "source_type"}, {Name: "source_id"},
				{Name: "matched_type"}, {Name: "matched_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"action", "match_score", "updated_at"}),
		}).
		Create(&match).Error
}

func (r *SavedMatchRepository) FindByAction(ctx context.Context, orgID uuid.UUID, action string) ([]entity.SavedMatch, error) {
	var matches []entity.SavedMatch
	if err := r.gormDB.WithContext(ctx).
		Where("org_id = ? AND action = ?", orgID, action).
		Order("created_at DESC").
		Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *SavedMatchRepository) FindDismissedForSource(ctx context.Context, orgID uuid.UUID, sourceType string, sourceID uuid.UUID) ([]entity.SavedMatch, error) {
	var matches []entity.SavedMatch
	q := r.gormDB.WithContext(ctx).
		Where("org_id = ? AND action = ?", orgID, entity.MatchActionDismissed)
	if sourceType != "" && sourceID != uuid.Nil {
		q = q.Where("source_type = ? AND source_id = ?", sourceType, sourceID)
	}
	if err := q.Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}
