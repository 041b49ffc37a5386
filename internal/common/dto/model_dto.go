package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateSupplyDto is the create payload for a supply listing.
type CreateSupplyDto struct {
	ItemName        string     `json:"item_name"`
	ItemCategory    string     `json:"item_category"`
	CategoryID      uint       `json:"category_id"`
	ItemDescription string     `json:"item_description"`
	PricePerUnit    float64    `json:"price_per_unit"`
	Currency        string     `json:"currency"`
	Quantity        float64    `json:"quantity"`
	QuantityUnit    string     `json:"quantity_unit"`
	SearchRadius    float64    `json:"search_radius"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	SupplierName    string     `json:"supplier_name"`
	SupplierContact string     `json:"supplier_contact"`
	SupplierEmail   string     `json:"supplier_email"`
}

// CreateDemandDto is the create payload for a demand listing.
type CreateDemandDto struct {
	ItemName         string     `json:"item_name"`
	ItemCategory     string     `json:"item_category"`
	CategoryID       uint       `json:"category_id"`
	ItemDescription  string     `json:"item_description"`
	MaxPricePerUnit  float64    `json:"max_price_per_unit"`
	Currency         string     `json:"currency"`
	Quantity         float64    `json:"quantity"`
	QuantityUnit     string     `json:"quantity_unit"`
	SearchRadius     float64    `json:"search_radius"`
	RequiredBy       *time.Time `json:"required_by"`
	DeliveryLocation string     `json:"delivery_location"`
}

// UpdateListingDto is a partial patch: only non-nil fields are applied.
// Fields specific to one side are ignored when patching the other.
type UpdateListingDto struct {
	ItemName         *string    `json:"item_name"`
	ItemCategory     *string    `json:"item_category"`
	CategoryID       *uint      `json:"category_id"`
	ItemDescription  *string    `json:"item_description"`
	PricePerUnit     *float64   `json:"price_per_unit"`
	MaxPricePerUnit  *float64   `json:"max_price_per_unit"`
	Currency         *string    `json:"currency"`
	Quantity         *float64   `json:"quantity"`
	QuantityUnit     *string    `json:"quantity_unit"`
	SearchRadius     *float64   `json:"search_radius"`
	ExpiryDate       *time.Time `json:"expiry_date"`
	RequiredBy       *time.Time `json:"required_by"`
	DeliveryLocation *string    `json:"delivery_location"`
	SupplierName     *string    `json:"supplier_name"`
	SupplierContact  *string    `json:"supplier_contact"`
	SupplierEmail    *string    `json:"supplier_email"`
}

type RateDto struct {
	Rating float64 `json:"rating"`
}

type SaveMatchDto struct {
	SourceType  string    `json:"source_type"`
	SourceID    uuid.UUID `json:"source_id"`
	MatchedType string    `json:"matched_type"`
	MatchedID   uuid.UUID `json:"matched_id"`
	MatchScore  *float64  `json:"match_score"`
	Action      string    `json:"action"`
}

type ScoreBreakdownDto struct {
	Similarity float64 `json:"similarity"`
	Price      float64 `json:"price"`
	Distance   float64 `json:"distance"`
	Quantity   float64 `json:"quantity"`
}

type MatchLabelsDto struct {
	Price          string   `json:"price"`
	Quantity       string   `json:"quantity"`
	FulfillmentPct *float64 `json:"fulfillment_pct"`
}

// MatchResultDto is one ranked candidate in a search response.
type MatchResultDto struct {
	ID              uuid.UUID         `json:"id"`
	OrgID           uuid.UUID         `json:"org_id"`
	OrgName         string            `json:"org_name"`
	ItemName        string            `json:"item_name"`
	ItemCategory    string            `json:"item_category"`
	ItemDescription string            `json:"item_description,omitempty"`
	Price           float64           `json:"price"`
	Currency        string            `json:"currency"`
	Quantity        float64           `json:"quantity"`
	QuantityUnit    string            `json:"quantity_unit"`
	DistanceKm      *float64          `json:"distance_km"`
	MatchScore      float64           `json:"match_score"`
	ScoreBreakdown  ScoreBreakdownDto `json:"score_breakdown"`
	MatchLabels     MatchLabelsDto    `json:"match_labels"`
	CategoryMatched bool              `json:"category_matched"`
	OrgEmail        string            `json:"org_email,omitempty"`
	OrgPhone        string            `json:"org_phone,omitempty"`
	OrgAddress      string            `json:"org_address,omitempty"`
	OrgLatitude     *float64          `json:"org_latitude"`
	OrgLongitude    *float64          `json:"org_longitude"`
}

// SearchEnvelope is the full search response; the same shape is stored in
// the cache with Cached=false and re-annotated on a hit.
type SearchEnvelope struct {
	SourceType            string           `json:"source_type"`
	SourceID              uuid.UUID        `json:"source_id"`
	SourceOrgName         string           `json:"source_org_name"`
	SourceOrgLat          *float64         `json:"source_org_lat"`
	SourceOrgLng          *float64         `json:"source_org_lng"`
	SourceItemName        string           `json:"source_item_name"`
	SourceItemCategory    string           `json:"source_item_category"`
	SourcePrice           float64          `json:"source_price"`
	SourceCurrency        string           `json:"source_currency"`
	SourceQuantity        float64          `json:"source_quantity"`
	SourceQuantityUnit    string           `json:"source_quantity_unit"`
	TotalResults          int              `json:"total_results"`
	SearchRadiusKm        float64          `json:"search_radius_km"`
	Cached                bool             `json:"cached"`
	CacheExpiresInSeconds *int64           `json:"cache_expires_in_seconds"`
	Results               []MatchResultDto `json:"results"`
	SearchedAt            time.Time        `json:"searched_at"`
}

// SavedMatchDto mirrors one stored saved/dismissed decision.
type SavedMatchDto struct {
	OrgID       uuid.UUID `json:"org_id"`
	SourceType  string    `json:"source_type"`
	SourceID    uuid.UUID `json:"source_id"`
	MatchedType string    `json:"matched_type"`
	MatchedID   uuid.UUID `json:"matched_id"`
	MatchScore  *float64  `json:"match_score"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListingDto is the read shape for a single listing joined with its
// category and organisation.
type ListingDto struct {
	ID               uuid.UUID  `json:"id"`
	OrgID            uuid.UUID  `json:"org_id"`
	OrgName          string     `json:"org_name,omitempty"`
	ItemName         string     `json:"item_name"`
	ItemCategory     string     `json:"item_category"`
	ItemDescription  string     `json:"item_description,omitempty"`
	PricePerUnit     float64    `json:"price_per_unit,omitempty"`
	MaxPricePerUnit  float64    `json:"max_price_per_unit,omitempty"`
	Currency         string     `json:"currency"`
	Quantity         float64    `json:"quantity"`
	QuantityUnit     string     `json:"quantity_unit"`
	SearchRadius     float64    `json:"search_radius"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	RequiredBy       *time.Time `json:"required_by,omitempty"`
	DeliveryLocation string     `json:"delivery_location,omitempty"`
	Rating           *float64   `json:"rating"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
}
