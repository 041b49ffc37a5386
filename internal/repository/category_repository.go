package repository

import (
	"context"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketmatch/internal/domain/entity"
)

type ICategoryRepository interface {
	// ResolveOrCreate maps a free-text category name to a category id,
	// creating the category on first use. It never fails the caller's
	// write: any resolution problem falls back to the Uncategorized id.
	ResolveOrCreate(ctx context.Context, name string) uint
	EnsureUncategorized(ctx context.Context) error
	FindName(ctx context.Context, id uint) (string, error)
}

type CategoryRepository struct {
	gormDB *gorm.DB
	log    zerolog.Logger
}

func NewCategoryRepository(db *gorm.DB, log zerolog.Logger) ICategoryRepository {
	return &CategoryRepository{
		gormDB: db,
		log:    log.With().Str("component", "category_repository").Logger(),
	}
}

// Slugify reduces a category name to a url-safe unique key.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func (r *CategoryRepository) ResolveOrCreate(ctx context.Context, name string) uint {
	slug := Slugify(name)
	if slug == "" {
		return entity.UncategorizedID
	}

	// Upsert by unique slug: no read-then-write race on first use of a
	// new category name.
	cat := entity.ItemCategory{CategoryName: strings.TrimSpace(name), Slug: slug}
	err := r.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"slug": slug}),
		}).
		Create(&cat).Error
	if err != nil || cat.ID == 0 {
		// The silent id-1 fallback is inherited behavior; keep it, but
		// make it impossible to miss in the logs.
		r.log.Error().Err(err).Str("category", name).
			Uint("fallback_id", entity.UncategorizedID).
			Msg("category resolution failed, falling back to Uncategorized")
		return entity.UncategorizedID
	}
	return cat.ID
}

// EnsureUncategorized seeds the reserved fallback row at startup.
func (r *CategoryRepository) EnsureUncategorized(ctx context.Context) error {
	cat := entity.ItemCategory{ID: entity.UncategorizedID, CategoryName: "Uncategorized", Slug: "uncategorized"}
	return r.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cat).Error
}

func (r *CategoryRepository) FindName(ctx context.Context, id uint) (string, error) {
	var cat entity.ItemCategory
	if err := r.gormDB.WithContext(ctx).Take(&cat, "id = ?", id).Error; err != nil {
		return "", err
	}
	return cat.CategoryName, nil
}
