// Package service implements the match-search orchestrator: cached,
// scored, ranked candidate lists for one listing, plus the rating and
// saved-match operations that hang off search results.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"marketmatch/internal/cache"
	"marketmatch/internal/common/apperrors"
	"marketmatch/internal/common/dto"
	"marketmatch/internal/domain/entity"
	"marketmatch/internal/matching"
	"marketmatch/internal/repository"
	"marketmatch/pkg/utils"
)

const (
	// DefaultSearchRadiusKm applies when neither the caller nor the
	// listing specifies a radius.
	DefaultSearchRadiusKm = 50.0

	maxScoringWorkers = 8
)

type SearchOptions struct {
	ForceRefresh   bool
	RadiusOverride float64
}

type IMatchSearchService interface {
	Search(ctx context.Context, listingType string, id uuid.UUID, opts SearchOptions) (dto.SearchEnvelope, error)
	DropCacheEntry(ctx context.Context, listingType string, id uuid.UUID)
	Rate(ctx context.Context, listingType string, id uuid.UUID, rating float64) (float64, error)
	SaveMatch(ctx context.Context, orgID uuid.UUID, payload dto.SaveMatchDto) error
	ListSaved(ctx context.Context, orgID uuid.UUID) ([]dto.SavedMatchDto, error)
	ListDismissed(ctx context.Context, orgID uuid.UUID, sourceType string, sourceID uuid.UUID) ([]dto.SavedMatchDto, error)
}

type MatchSearchService struct {
	supplyRepo  repository.ISupplyRepository
	demandRepo  repository.IDemandRepository
	savedRepo   repository.ISavedMatchRepository
	searchCache cache.SearchCache
	invalidator *cache.CrossInvalidator
	scorer      Scorer
	cacheTTL    time.Duration
	log         zerolog.Logger
}

func NewMatchSearchService(
	supplyRepo repository.ISupplyRepository,
	demandRepo repository.IDemandRepository,
	savedRepo repository.ISavedMatchRepository,
	searchCache cache.SearchCache,
	invalidator *cache.CrossInvalidator,
	scorer Scorer,
	cacheTTL time.Duration,
	log zerolog.Logger,
) IMatchSearchService {
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}
	return &MatchSearchService{
		supplyRepo:  supplyRepo,
		demandRepo:  demandRepo,
		savedRepo:   savedRepo,
		searchCache: searchCache,
		invalidator: invalidator,
		scorer:      scorer,
		cacheTTL:    cacheTTL,
		log:         log.With().Str("component", "match_search").Logger(),
	}
}

func (s *MatchSearchService) Search(ctx context.Context, listingType string, id uuid.UUID, opts SearchOptions) (dto.SearchEnvelope, error) {
	if err := utils.ValidateListingType(listingType); err != nil {
		return dto.SearchEnvelope{}, &apperrors.ValidationError{Msg: err.Error()}
	}

	key := cache.SearchKey(listingType, id.String())
	if !opts.ForceRefresh {
		if env, ok := s.cacheLookup(ctx, key); ok {
			return env, nil
		}
	}

	var (
		env dto.SearchEnvelope
		err error
	)
	if listingType == entity.ListingTypeSupply {
		env, err = s.searchFromSupply(ctx, id, opts)
	} else {
		env, err = s.searchFromDemand(ctx, id, opts)
	}
	if err != nil {
		return dto.SearchEnvelope{}, err
	}

	s.cacheStore(ctx, key, env)
	return env, nil
}

func (s *MatchSearchService) searchFromSupply(ctx context.Context, id uuid.UUID, opts SearchOptions) (dto.SearchEnvelope, error) {
	supply, err := s.supplyRepo.FindActive(ctx, id)
	if err != nil {
		return dto.SearchEnvelope{}, asNotFound(err)
	}
	radius := effectiveRadius(opts.RadiusOverride, supply.SearchRadius)

	demands, err := s.demandRepo.FindActiveCandidates(ctx, supply.OrgID)
	if err != nil {
		return dto.SearchEnvelope{}, fmt.Errorf("load demand candidates: %w", err)
	}

	cands := make([]candidate, 0, len(demands))
	for _, d := range demands {
		cands = append(cands, demandCandidate(d))
	}

	source := matching.Listing{
		ItemName:        supply.ItemName,
		ItemDescription: supply.ItemDescription,
		CategoryName:    supply.Category.CategoryName,
		CategoryID:      supply.CategoryID,
		Price:           supply.PricePerUnit,
		Quantity:        supply.Quantity,
		QuantityUnit:    supply.QuantityUnit,
		Latitude:        supply.Org.Latitude,
		Longitude:       supply.Org.Longitude,
	}

	results, err := s.scoreAll(ctx, source, true, radius, cands)
	if err != nil {
		return dto.SearchEnvelope{}, err
	}

	env := dto.SearchEnvelope{
		SourceType:         entity.ListingTypeSupply,
		SourceID:           supply.ID,
		SourceOrgName:      supply.Org.OrgName,
		SourceOrgLat:       supply.Org.Latitude,
		SourceOrgLng:       supply.Org.Longitude,
		SourceItemName:     supply.ItemName,
		SourceItemCategory: supply.Category.CategoryName,
		SourcePrice:        supply.PricePerUnit,
		SourceCurrency:     supply.Currency,
		SourceQuantity:     supply.Quantity,
		SourceQuantityUnit: supply.QuantityUnit,
		TotalResults:       len(results),
		SearchRadiusKm:     radius,
		Results:            results,
		SearchedAt:         time.Now().UTC(),
	}
	return env, nil
}

func (s *MatchSearchService) searchFromDemand(ctx context.Context, id uuid.UUID, opts SearchOptions) (dto.SearchEnvelope, error) {
	demand, err := s.demandRepo.FindActive(ctx, id)
	if err != nil {
		return dto.SearchEnvelope{}, asNotFound(err)
	}
	radius := effectiveRadius(opts.RadiusOverride, demand.SearchRadius)

	supplies, err := s.supplyRepo.FindActiveCandidates(ctx, demand.OrgID)
	if err != nil {
		return dto.SearchEnvelope{}, fmt.Errorf("load supply candidates: %w", err)
	}

	cands := make([]candidate, 0, len(supplies))
	for _, sup := range supplies {
		cands = append(cands, supplyCandidate(sup))
	}

	source := matching.Listing{
		ItemName:        demand.ItemName,
		ItemDescription: demand.ItemDescription,
		CategoryName:    demand.Category.CategoryName,
		CategoryID:      demand.CategoryID,
		Price:           demand.MaxPricePerUnit,
		Quantity:        demand.Quantity,
		QuantityUnit:    demand.QuantityUnit,
		Latitude:        demand.Org.Latitude,
		Longitude:       demand.Org.Longitude,
	}

	results, err := s.scoreAll(ctx, source, false, radius, cands)
	if err != nil {
		return dto.SearchEnvelope{}, err
	}

	env := dto.SearchEnvelope{
		SourceType:         entity.ListingTypeDemand,
		SourceID:           demand.ID,
		SourceOrgName:      demand.Org.OrgName,
		SourceOrgLat:       demand.Org.Latitude,
		SourceOrgLng:       demand.Org.Longitude,
		SourceItemName:     demand.ItemName,
		SourceItemCategory: demand.Category.CategoryName,
		SourcePrice:        demand.MaxPricePerUnit,
		SourceCurrency:     demand.Currency,
		SourceQuantity:     demand.Quantity,
		SourceQuantityUnit: demand.QuantityUnit,
		TotalResults:       len(results),
		SearchRadiusKm:     radius,
		Results:            results,
		SearchedAt:         time.Now().UTC(),
	}
	return env, nil
}

// candidate pairs the scoring input with the pre-built response row for
// one opposite-side listing.
type candidate struct {
	listing matching.Listing
	base    dto.MatchResultDto
}

func supplyCandidate(s entity.Supply) candidate {
	return candidate{
		listing: matching.Listing{
			ItemName:        s.ItemName,
			ItemDescription: s.ItemDescription,
			CategoryName:    s.Category.CategoryName,
			CategoryID:      s.CategoryID,
			Price:           s.PricePerUnit,
			Quantity:        s.Quantity,
			QuantityUnit:    s.QuantityUnit,
			Latitude:        s.Org.Latitude,
			Longitude:       s.Org.Longitude,
		},
		base: dto.MatchResultDto{
			ID:              s.ID,
			OrgID:           s.OrgID,
			OrgName:         s.Org.OrgName,
			ItemName:        s.ItemName,
			ItemCategory:    s.Category.CategoryName,
			ItemDescription: s.ItemDescription,
			Price:           s.PricePerUnit,
			Currency:        s.Currency,
			Quantity:        s.Quantity,
			QuantityUnit:    s.QuantityUnit,
			OrgEmail:        s.Org.Email,
			OrgPhone:        s.Org.PhoneNumber,
			OrgAddress:      s.Org.Address,
			OrgLatitude:     s.Org.Latitude,
			OrgLongitude:    s.Org.Longitude,
		},
	}
}

func demandCandidate(d entity.Demand) candidate {
	return candidate{
		listing: matching.Listing{
			ItemName:        d.ItemName,
			ItemDescription: d.ItemDescription,
			CategoryName:    d.Category.CategoryName,
			CategoryID:      d.CategoryID,
			Price:           d.MaxPricePerUnit,
			Quantity:        d.Quantity,
			QuantityUnit:    d.QuantityUnit,
			Latitude:        d.Org.Latitude,
			Longitude:       d.Org.Longitude,
		},
		base: dto.MatchResultDto{
			ID:              d.ID,
			OrgID:           d.OrgID,
			OrgName:         d.Org.OrgName,
			ItemName:        d.ItemName,
			ItemCategory:    d.Category.CategoryName,
			ItemDescription: d.ItemDescription,
			Price:           d.MaxPricePerUnit,
			Currency:        d.Currency,
			Quantity:        d.Quantity,
			QuantityUnit:    d.QuantityUnit,
			OrgEmail:        d.Org.Email,
			OrgPhone:        d.Org.PhoneNumber,
			OrgAddress:      d.Org.Address,
			OrgLatitude:     d.Org.Latitude,
			OrgLongitude:    d.Org.Longitude,
		},
	}
}

// scoreAll runs the scorer over every candidate on a bounded worker pool,
// drops candidates past the radius, and ranks the rest. The final order
// is computed after all scores are collected, so it is deterministic no
// matter how the workers interleave.
func (s *MatchSearchService) scoreAll(ctx context.Context, source matching.Listing, sourceIsSupply bool, radius float64, cands []candidate) ([]dto.MatchResultDto, error) {
	scored := make([]*dto.MatchResultDto, len(cands))

	workers := maxScoringWorkers
	if len(cands) < workers {
		workers = len(cands)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				b, within, err := s.scorer.Score(ctx, matching.Pair{
					Source:         source,
					Candidate:      cands[idx].listing,
					SourceIsSupply: sourceIsSupply,
					RadiusKm:       radius,
				})
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				if !within {
					continue
				}
				row := cands[idx].base
				row.DistanceKm = b.DistanceKm
				row.MatchScore = b.TotalScore
				row.CategoryMatched = b.CategoryMatched
				row.ScoreBreakdown = dto.ScoreBreakdownDto{
					Similarity: b.Similarity,
					Price:      b.Price,
					Distance:   b.Distance,
					Quantity:   b.Quantity,
				}
				row.MatchLabels = dto.MatchLabelsDto{
					Price:          b.PriceLabel,
					Quantity:       b.QuantityLabel,
					FulfillmentPct: b.FulfillmentPct,
				}
				scored[idx] = &row
			}
		}()
	}

dispatch:
	for idx := range cands {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrScoringUnavailable, firstErr)
	}

	results := make([]dto.MatchResultDto, 0, len(scored))
	for _, r := range scored {
		if r != nil {
			results = append(results, *r)
		}
	}
	rankResults(results)
	return results, nil
}

// rankResults sorts by score descending, then distance ascending with
// unknown distances last, then candidate id for a total order.
func rankResults(results []dto.MatchResultDto) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		switch {
		case a.DistanceKm != nil && b.DistanceKm == nil:
			return true
		case a.DistanceKm == nil && b.DistanceKm != nil:
			return false
		case a.DistanceKm != nil && b.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm:
			return *a.DistanceKm < *b.DistanceKm
		}
		return a.ID.String() < b.ID.String()
	})
}

func effectiveRadius(override, listingRadius float64) float64 {
	if override > 0 {
		return override
	}
	if listingRadius > 0 {
		return listingRadius
	}
	return DefaultSearchRadiusKm
}

// cacheLookup returns a cached envelope annotated with its remaining
// TTL. Any cache problem degrades to a miss.
func (s *MatchSearchService) cacheLookup(ctx context.Context, key string) (dto.SearchEnvelope, bool) {
	raw, ttl, err := s.searchCache.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return dto.SearchEnvelope{}, false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling through to store")
		return dto.SearchEnvelope{}, false
	}

	var env dto.SearchEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cached envelope undecodable, recomputing")
		return dto.SearchEnvelope{}, false
	}

	env.Cached = true
	secs := int64(ttl.Seconds())
	env.CacheExpiresInSeconds = &secs
	return env, true
}

// cacheStore writes the envelope; failures are logged and dropped, the
// search still succeeds uncached.
func (s *MatchSearchService) cacheStore(ctx context.Context, key string, env dto.SearchEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("envelope marshal failed, skipping cache write")
		return
	}
	if err := s.searchCache.Set(ctx, key, string(payload), s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed, serving uncached")
	}
}

func (s *MatchSearchService) DropCacheEntry(ctx context.Context, listingType string, id uuid.UUID) {
	s.invalidator.DropEntry(ctx, listingType, id.String())
}

// Rate rounds to the nearest half star and overwrites; repeated calls
// with the same value are no-ops.
func (s *MatchSearchService) Rate(ctx context.Context, listingType string, id uuid.UUID, rating float64) (float64, error) {
	if err := utils.ValidateListingType(listingType); err != nil {
		return 0, &apperrors.ValidationError{Msg: err.Error()}
	}
	rounded, err := utils.RoundRating(rating)
	if err != nil {
		return 0, &apperrors.ValidationError{Msg: err.Error()}
	}

	if listingType == entity.ListingTypeSupply {
		err = s.supplyRepo.SetRating(ctx, id, rounded)
	} else {
		err = s.demandRepo.SetRating(ctx, id, rounded)
	}
	if err != nil {
		return 0, asNotFound(err)
	}
	return rounded, nil
}

func (s *MatchSearchService) SaveMatch(ctx context.Context, orgID uuid.UUID, payload dto.SaveMatchDto) error {
	if err := utils.ValidateMatchAction(payload.Action); err != nil {
		return &apperrors.ValidationError{Msg: err.Error()}
	}
	if err := utils.ValidateListingType(payload.SourceType); err != nil {
		return &apperrors.ValidationError{Msg: err.Error()}
	}
	if err := utils.ValidateListingType(payload.MatchedType); err != nil {
		return &apperrors.ValidationError{Msg: err.Error()}
	}
	if orgID == uuid.Nil || payload.SourceID == uuid.Nil || payload.MatchedID == uuid.Nil {
		return &apperrors.ValidationError{Msg: "org_id, source_id and matched_id are required"}
	}

	return s.savedRepo.Upsert(ctx, entity.SavedMatch{
		OrgID:       orgID,
		SourceType:  payload.SourceType,
		SourceID:    payload.SourceID,
		MatchedType: payload.MatchedType,
		MatchedID:   payload.MatchedID,
		MatchScore:  payload.MatchScore,
		Action:      payload.Action,
	})
}

func (s *MatchSearchService) ListSaved(ctx context.Context, orgID uuid.UUID) ([]dto.SavedMatchDto, error) {
	matches, err := s.savedRepo.FindByAction(ctx, orgID, entity.MatchActionSaved)
	if err != nil {
		return nil, err
	}
	return toSavedMatchDtos(matches), nil
}

func (s *MatchSearchService) ListDismissed(ctx context.Context, orgID uuid.UUID, sourceType string, sourceID uuid.UUID) ([]dto.SavedMatchDto, error) {
	matches, err := s.savedRepo.FindDismissedForSource(ctx, orgID, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	return toSavedMatchDtos(matches), nil
}

func toSavedMatchDtos(matches []entity.SavedMatch) []dto.SavedMatchDto {
	out := make([]dto.SavedMatchDto, 0, len(matches))
	for _, m := range matches {
		out = append(out, dto.SavedMatchDto{
			OrgID:       m.OrgID,
			SourceType:  m.SourceType,
			SourceID:    m.SourceID,
			MatchedType: m.MatchedType,
			MatchedID:   m.MatchedID,
			MatchScore:  m.MatchScore,
			Action:      m.Action,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out
}

func asNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}
