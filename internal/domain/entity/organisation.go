package entity

import (
	"time"

	"github.com/google/uuid"
)

// Organisation is owned by the accounts subsystem; the matching core only
// ever reads it.
type Organisation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	OrgName     string    `gorm:"type:varchar(255);not null"`
	Email       string    `gorm:"type:varchar(255)"`
	PhoneNumber string    `gorm:"type:varchar(50)"`
	Address     string    `gorm:"type:text"`
	Latitude    *float64  `gorm:"type:double precision"`
	Longitude   *float64  `gorm:"type:double precision"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
