package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	MatchActionSaved     = "saved"
	MatchActionDismissed = "dismissed"
)

// SavedMatch records an organisation's decision about one match pair.
// The composite unique index makes repeated saves an upsert, never a
// duplicate row.
type SavedMatch struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	OrgID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_saved_match_key"`
	SourceType  string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_saved_match_key"`
	SourceID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_saved_match_key"`
	MatchedType string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_saved_match_key"`
	MatchedID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_saved_match_key"`
	MatchScore  *float64  `gorm:"type:double precision"`
	Action      string    `gorm:"type:varchar(10);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
