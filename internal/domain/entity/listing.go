package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ListingTypeSupply = "supply"
	ListingTypeDemand = "demand"
)

// OppositeType returns the other marketplace side for a listing type.
func OppositeType(listingType string) string {
	if listingType == ListingTypeSupply {
		return ListingTypeDemand
	}
	return ListingTypeSupply
}

type Supply struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	OrgID           uuid.UUID `gorm:"type:uuid;not null;index"`
	CategoryID      uint      `gorm:"not null;index"`
	ItemName        string    `gorm:"type:varchar(255);not null"`
	ItemDescription string    `gorm:"type:text"`
	PricePerUnit    float64   `gorm:"type:double precision;default:0"`
	Currency        string    `gorm:"type:varchar(10);default:'USD'"`
	Quantity        float64   `gorm:"type:double precision;default:0"`
	QuantityUnit    string    `gorm:"type:varchar(50);default:'unit'"`
	SearchRadius    float64   `gorm:"type:double precision;default:50"`
	ExpiryDate      *time.Time
	SupplierName    string `gorm:"type:varchar(255)"`
	SupplierPhone   string `gorm:"type:varchar(50)"`
	SupplierEmail   string `gorm:"type:varchar(255)"`
	Rating          *float64
	IsActive        bool `gorm:"type:boolean;default:true;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time `gorm:"default:null;index"`

	Org      Organisation `gorm:"foreignKey:OrgID"`
	Category ItemCategory `gorm:"foreignKey:CategoryID"`
}

type Demand struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	OrgID            uuid.UUID `gorm:"type:uuid;not null;index"`
	CategoryID       uint      `gorm:"not null;index"`
	ItemName         string    `gorm:"type:varchar(255);not null"`
	ItemDescription  string    `gorm:"type:text"`
	MaxPricePerUnit  float64   `gorm:"type:double precision;default:0"`
	Currency         string    `gorm:"type:varchar(10);default:'USD'"`
	Quantity         float64   `gorm:"type:double precision;default:0"`
	QuantityUnit     string    `gorm:"type:varchar(50);default:'unit'"`
	SearchRadius     float64   `gorm:"type:double precision;default:50"`
	RequiredBy       *time.Time
	DeliveryLocation string `gorm:"type:varchar(255)"`
	Rating           *float64
	IsActive         bool `gorm:"type:boolean;default:true;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time `gorm:"default:null;index"`

	Org      Organisation `gorm:"foreignKey:OrgID"`
	Category ItemCategory `gorm:"foreignKey:CategoryID"`
}
