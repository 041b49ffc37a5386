package entity

import "time"

// UncategorizedID is the reserved fallback category. Listings whose
// category cannot be resolved land here instead of failing the write.
const UncategorizedID uint = 1

type ItemCategory struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	CategoryName string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Slug         string `gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt    time.Time
}
