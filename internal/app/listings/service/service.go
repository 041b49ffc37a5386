// Package service implements listing CRUD for both marketplace sides.
// Every write invalidates the affected cached searches before returning.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"marketmatch/internal/cache"
	"marketmatch/internal/common/apperrors"
	"marketmatch/internal/common/dto"
	"marketmatch/internal/domain/entity"
	"marketmatch/internal/repository"
	"marketmatch/pkg/utils"
)

const (
	defaultSearchRadiusKm = 50.0
	defaultCurrency       = "USD"
	defaultQuantityUnit   = "unit"
)

type IListingService interface {
	CreateSupply(ctx context.Context, orgID uuid.UUID, payload dto.CreateSupplyDto) (dto.ListingDto, error)
	CreateDemand(ctx context.Context, orgID uuid.UUID, payload dto.CreateDemandDto) (dto.ListingDto, error)
	GetListing(ctx context.Context, listingType string, id uuid.UUID) (dto.ListingDto, error)
	ListByOrg(ctx context.Context, listingType string, orgID uuid.UUID) ([]dto.ListingDto, error)
	UpdateListing(ctx context.Context, listingType string, id, orgID uuid.UUID, payload dto.UpdateListingDto) error
	DeleteListing(ctx context.Context, listingType string, id, orgID uuid.UUID) error
}

type ListingService struct {
	supplyRepo   repository.ISupplyRepository
	demandRepo   repository.IDemandRepository
	categoryRepo repository.ICategoryRepository
	invalidator  *cache.CrossInvalidator
	log          zerolog.Logger
}

func NewListingService(
	supplyRepo repository.ISupplyRepository,
	demandRepo repository.IDemandRepository,
	categoryRepo repository.ICategoryRepository,
	invalidator *cache.CrossInvalidator,
	log zerolog.Logger,
) IListingService {
	return &ListingService{
		supplyRepo:   supplyRepo,
		demandRepo:   demandRepo,
		categoryRepo: categoryRepo,
		invalidator:  invalidator,
		log:          log.With().Str("component", "listings").Logger(),
	}
}

func (s *ListingService) CreateSupply(ctx context.Context, orgID uuid.UUID, payload dto.CreateSupplyDto) (dto.ListingDto, error) {
	if err := validateCreate(orgID, payload.ItemName, payload.PricePerUnit, payload.Quantity); err != nil {
		return dto.ListingDto{}, err
	}

	supply := entity.Supply{
		OrgID:           orgID,
		CategoryID:      s.resolveCategory(ctx, payload.CategoryID, payload.ItemCategory),
		ItemName:        strings.TrimSpace(payload.ItemName),
		ItemDescription: payload.ItemDescription,
		PricePerUnit:    payload.PricePerUnit,
		Currency:        defaultString(payload.Currency, defaultCurrency),
		Quantity:        payload.Quantity,
		QuantityUnit:    defaultString(payload.QuantityUnit, defaultQuantityUnit),
		SearchRadius:    defaultRadius(payload.SearchRadius),
		ExpiryDate:      payload.ExpiryDate,
		SupplierName:    payload.SupplierName,
		SupplierPhone:   payload.SupplierContact,
		SupplierEmail:   payload.SupplierEmail,
		IsActive:        true,
	}

	created, err := s.supplyRepo.Create(ctx, supply)
	if err != nil {
		return dto.ListingDto{}, err
	}
	s.invalidator.OnListingChanged(ctx, entity.ListingTypeSupply, created.ID.String(), false)
	return s.supplyDto(ctx, created), nil
}

func (s *ListingService) CreateDemand(ctx context.Context, orgID uuid.UUID, payload dto.CreateDemandDto) (dto.ListingDto, error) {
	if err := validateCreate(orgID, payload.ItemName, payload.MaxPricePerUnit, payload.Quantity); err != nil {
		return dto.ListingDto{}, err
	}

	demand := entity.Demand{
		OrgID:            orgID,
		CategoryID:       s.resolveCategory(ctx, payload.CategoryID, payload.ItemCategory),
		ItemName:         strings.TrimSpace(payload.ItemName),
		ItemDescription:  payload.ItemDescription,
		MaxPricePerUnit:  payload.MaxPricePerUnit,
		Currency:         defaultString(payload.Currency, defaultCurrency),
		Quantity:         payload.Quantity,
		QuantityUnit:     defaultString(payload.QuantityUnit, defaultQuantityUnit),
		SearchRadius:     defaultRadius(payload.SearchRadius),
		RequiredBy:       payload.RequiredBy,
		DeliveryLocation: payload.DeliveryLocation,
		IsActive:         true,
	}

	created, err := s.demandRepo.Create(ctx, demand)
	if err != nil {
		return dto.ListingDto{}, err
	}
	s.invalidator.OnListingChanged(ctx, entity.ListingTypeDemand, created.ID.String(), false)
	return s.demandDto(ctx, created), nil
}

func (s *ListingService) GetListing(ctx context.Context, listingType string, id uuid.UUID) (dto.ListingDto, error) {
	if err := utils.ValidateListingType(listingType); err != nil {
		return dto.ListingDto{}, &apperrors.ValidationError{Msg: err.Error()}
	}

	if listingType == entity.ListingTypeSupply {
		supply, err := s.supplyRepo.FindActive(ctx, id)
		if err != nil {
			return dto.ListingDto{}, asNotFound(err)
		}
		return s.supplyDto(ctx, supply), nil
	}
	demand, err := s.demandRepo.FindActive(ctx, id)
	if err != nil {
		return dto.ListingDto{}, asNotFound(err)
	}
	return s.demandDto(ctx, demand), nil
}

func (s *ListingService) ListByOrg(ctx context.Context, listingType string, orgID uuid.UUID) ([]dto.ListingDto, error) {
	if err := utils.ValidateListingType(listingType); err != nil {
		return nil, &apperrors.ValidationError{Msg: err.Error()}
	}

	out := []dto.ListingDto{}
	if listingType == entity.ListingTypeSupply {
		supplies, err := s.supplyRepo.FindByOrg(ctx, orgID)
		if err != nil {
			return nil, err
		}
		for _, sup := range supplies {
			out = append(out, s.supplyDto(ctx, sup))
		}
		return out, nil
	}
	demands, err := s.demandRepo.FindByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for _, d := range demands {
		out = append(out, s.demandDto(ctx, d))
	}
	return out, nil
}

func (s *ListingService) UpdateListing(ctx context.Context, listingType string, id, orgID uuid.UUID, payload dto.UpdateListingDto) error {
	if err := utils.ValidateListingType(listingType); err != nil {
		return &apperrors.ValidationError{Msg: err.Error()}
	}

	updates := s.buildPatch(ctx, listingType, payload)
	if len(updates) == 0 {
		return &apperrors.ValidationError{Msg: "no updatable fields in payload"}
	}

	var err error
	if listingType == entity.ListingTypeSupply {
		err = s.supplyRepo.Patch(ctx, id, orgID, updates)
	} else {
		err = s.demandRepo.Patch(ctx, id, orgID, updates)
	}
	if err != nil {
		return asNotFound(err)
	}

	s.invalidator.OnListingChanged(ctx, listingType, id.String(), true)
	return nil
}

func (s *ListingService) DeleteListing(ctx context.Context, listingType string, id, orgID uuid.UUID) error {
	if err := utils.ValidateListingType(listingType); err != nil {
		return &apperrors.ValidationError{Msg: err.Error()}
	}

	var err error
	if listingType == entity.ListingTypeSupply {
		err = s.supplyRepo.SoftDelete(ctx, id, orgID)
	} else {
		err = s.demandRepo.SoftDelete(ctx, id, orgID)
	}
	if err != nil {
		return asNotFound(err)
	}

	s.invalidator.OnListingChanged(ctx, listingType, id.String(), true)
	return nil
}

// buildPatch maps the non-nil payload fields to column updates. Fields
// belonging to the other listing side are ignored, not rejected, so one
// patch shape serves both.
func (s *ListingService) buildPatch(ctx context.Context, listingType string, payload dto.UpdateListingDto) map[string]interface{} {
	updates := map[string]interface{}{}

	if payload.ItemName != nil {
		updates["item_name"] = strings.TrimSpace(*payload.ItemName)
	}
	if payload.CategoryID != nil {
		updates["category_id"] = *payload.CategoryID
	} else if payload.ItemCategory != nil {
		updates["category_id"] = s.categoryRepo.ResolveOrCreate(ctx, *payload.ItemCategory)
	}
	if payload.ItemDescription != nil {
		updates["item_description"] = *payload.ItemDescription
	}
	if payload.Currency != nil {
		updates["currency"] = *payload.Currency
	}
	if payload.Quantity != nil {
		updates["quantity"] = *payload.Quantity
	}
	if payload.QuantityUnit != nil {
		updates["quantity_unit"] = *payload.QuantityUnit
	}
	if payload.SearchRadius != nil {
		updates["search_radius"] = *payload.SearchRadius
	}

	if listingType == entity.ListingTypeSupply {
		if payload.PricePerUnit != nil {
			updates["price_per_unit"] = *payload.PricePerUnit
		}
		if payload.ExpiryDate != nil {
			updates["expiry_date"] = *payload.ExpiryDate
		}
		if payload.SupplierName != nil {
			updates["supplier_name"] = *payload.SupplierName
		}
		if payload.SupplierContact != nil {
			updates["supplier_phone"] = *payload.SupplierContact
		}
		if payload.SupplierEmail != nil {
			updates["supplier_email"] = *payload.SupplierEmail
		}
	} else {
		if payload.MaxPricePerUnit != nil {
			updates["max_price_per_unit"] = *payload.MaxPricePerUnit
		}
		if payload.RequiredBy != nil {
			updates["required_by"] = *payload.RequiredBy
		}
		if payload.DeliveryLocation != nil {
			updates["delivery_location"] = *payload.DeliveryLocation
		}
	}
	return updates
}

func (s *ListingService) resolveCategory(ctx context.Context, categoryID uint, categoryName string) uint {
	if categoryID != 0 {
		return categoryID
	}
	return s.categoryRepo.ResolveOrCreate(ctx, categoryName)
}

// categoryName prefers the preloaded association and falls back to a
// lookup for rows returned by Create, which gorm does not preload.
func (s *ListingService) categoryName(ctx context.Context, preloaded string, categoryID uint) string {
	if preloaded != "" {
		return preloaded
	}
	name, err := s.categoryRepo.FindName(ctx, categoryID)
	if err != nil {
		s.log.Warn().Err(err).Uint("category_id", categoryID).Msg("category name lookup failed")
		return ""
	}
	return name
}

func (s *ListingService) supplyDto(ctx context.Context, supply entity.Supply) dto.ListingDto {
	return dto.ListingDto{
		ID:              supply.ID,
		OrgID:           supply.OrgID,
		OrgName:         supply.Org.OrgName,
		ItemName:        supply.ItemName,
		ItemCategory:    s.categoryName(ctx, supply.Category.CategoryName, supply.CategoryID),
		ItemDescription: supply.ItemDescription,
		PricePerUnit:    supply.PricePerUnit,
		Currency:        supply.Currency,
		Quantity:        supply.Quantity,
		QuantityUnit:    supply.QuantityUnit,
		SearchRadius:    supply.SearchRadius,
		ExpiryDate:      supply.ExpiryDate,
		Rating:          supply.Rating,
		IsActive:        supply.IsActive,
		CreatedAt:       supply.CreatedAt,
	}
}

func (s *ListingService) demandDto(ctx context.Context, demand entity.Demand) dto.ListingDto {
	return dto.ListingDto{
		ID:               demand.ID,
		OrgID:            demand.OrgID,
		OrgName:          demand.Org.OrgName,
		ItemName:         demand.ItemName,
		ItemCategory:     s.categoryName(ctx, demand.Category.CategoryName, demand.CategoryID),
		ItemDescription:  demand.ItemDescription,
		MaxPricePerUnit:  demand.MaxPricePerUnit,
		Currency:         demand.Currency,
		Quantity:         demand.Quantity,
		QuantityUnit:     demand.QuantityUnit,
		SearchRadius:     demand.SearchRadius,
		RequiredBy:       demand.RequiredBy,
		DeliveryLocation: demand.DeliveryLocation,
		Rating:           demand.Rating,
		IsActive:         demand.IsActive,
		CreatedAt:        demand.CreatedAt,
	}
}

func validateCreate(orgID uuid.UUID, itemName string, price, quantity float64) error {
	if orgID == uuid.Nil {
		return &apperrors.ValidationError{Msg: "org id is required"}
	}
	if strings.TrimSpace(itemName) == "" {
		return &apperrors.ValidationError{Msg: "item_name is required"}
	}
	if price < 0 {
		return &apperrors.ValidationError{Msg: "price must not be negative"}
	}
	if quantity < 0 {
		return &apperrors.ValidationError{Msg: "quantity must not be negative"}
	}
	return nil
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func defaultRadius(v float64) float64 {
	if v <= 0 {
		return defaultSearchRadiusKm
	}
	return v
}

func asNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}
