package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketmatch/internal/cache"
	"marketmatch/internal/common/apperrors"
	"marketmatch/internal/common/dto"
	"marketmatch/internal/domain/entity"
	"marketmatch/internal/matching"
)

type fakeSupplyRepo struct {
	byID        map[uuid.UUID]entity.Supply
	candidates  []entity.Supply
	candErr     error
	excludedOrg uuid.UUID
	ratings     map[uuid.UUID]float64
	ratingErr   error
}

func newFakeSupplyRepo() *fakeSupplyRepo {
	return &fakeSupplyRepo{
		byID:    map[uuid.UUID]entity.Supply{},
		ratings: map[uuid.UUID]float64{},
	}
}

func (f *fakeSupplyRepo) Create(_ context.Context, s entity.Supply) (entity.Supply, error) {
	return s, nil
}

func (f *fakeSupplyRepo) FindActive(_ context.Context, id uuid.UUID) (entity.Supply, error) {
	s, ok := f.byID[id]
	if !ok {
		return entity.Supply{}, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (f *fakeSupplyRepo) FindByOrg(_ context.Context, _ uuid.UUID) ([]entity.Supply, error) {
	return nil, nil
}

func (f *fakeSupplyRepo) FindActiveCandidates(_ context.Context, excludeOrgID uuid.UUID) ([]entity.Supply, error) {
	f.excludedOrg = excludeOrgID
	return f.candidates, f.candErr
}

func (f *fakeSupplyRepo) Patch(_ context.Context, _, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

func (f *fakeSupplyRepo) SoftDelete(_ context.Context, _, _ uuid.UUID) error { return nil }

func (f *fakeSupplyRepo) DeactivateExpired(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeSupplyRepo) SetRating(_ context.Context, id uuid.UUID, rating float64) error {
	if f.ratingErr != nil {
		return f.ratingErr
	}
	f.ratings[id] = rating
	return nil
}

type fakeDemandRepo struct {
	byID       map[uuid.UUID]entity.Demand
	candidates []entity.Demand
	candErr    error
	ratings    map[uuid.UUID]float64
	ratingErr  error
}

func newFakeDemandRepo() *fakeDemandRepo {
	return &fakeDemandRepo{
		byID:    map[uuid.UUID]entity.Demand{},
		ratings: map[uuid.UUID]float64{},
	}
}

func (f *fakeDemandRepo) Create(_ context.Context, d entity.Demand) (entity.Demand, error) {
	return d, nil
}

func (f *fakeDemandRepo) FindActive(_ context.Context, id uuid.UUID) (entity.Demand, error) {
	d, ok := f.byID[id]
	if !ok {
		return entity.Demand{}, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (f *fakeDemandRepo) FindByOrg(_ context.Context, _ uuid.UUID) ([]entity.Demand, error) {
	return nil, nil
}

func (f *fakeDemandRepo) FindActiveCandidates(_ context.Context, _ uuid.UUID) ([]entity.Demand, error) {
	return f.candidates, f.candErr
}

func (f *fakeDemandRepo) Patch(_ context.Context, _, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

func (f *fakeDemandRepo) SoftDelete(_ context.Context, _, _ uuid.UUID) error { return nil }

func (f *fakeDemandRepo) DeactivateLapsed(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeDemandRepo) SetRating(_ context.Context, id uuid.UUID, rating float64) error {
	if f.ratingErr != nil {
		return f.ratingErr
	}
	f.ratings[id] = rating
	return nil
}

type fakeSavedRepo struct {
	upserted []entity.SavedMatch
	stored   []entity.SavedMatch
}

func (f *fakeSavedRepo) Upsert(_ context.Context, m entity.SavedMatch) error {
	f.upserted = append(f.upserted, m)
	return nil
}

func (f *fakeSavedRepo) FindByAction(_ context.Context, orgID uuid.UUID, action string) ([]entity.SavedMatch, error) {
	var out []entity.SavedMatch
	for _, m := range f.stored {
		if m.OrgID == orgID && m.Action == action {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSavedRepo) FindDismissedForSource(_ context.Context, orgID uuid.UUID, sourceType string, sourceID uuid.UUID) ([]entity.SavedMatch, error) {
	var out []entity.SavedMatch
	for _, m := range f.stored {
		if m.OrgID != orgID || m.Action != entity.MatchActionDismissed {
			continue
		}
		if sourceType != "" && (m.SourceType != sourceType || m.SourceID != sourceID) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type fakeCacheEntry struct {
	value string
	ttl   time.Duration
}

type fakeCache struct {
	entries  map[string]fakeCacheEntry
	getErr   error
	setErr   error
	setCount int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]fakeCacheEntry{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, time.Duration, error) {
	if f.getErr != nil {
		return "", 0, f.getErr
	}
	e, ok := f.entries[key]
	if !ok {
		return "", 0, cache.ErrMiss
	}
	return e.value, e.ttl, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = fakeCacheEntry{value: value, ttl: ttl}
	f.setCount++
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func (f *fakeCache) DeleteByPattern(_ context.Context, _ string) (int, error) {
	n := len(f.entries)
	f.entries = map[string]fakeCacheEntry{}
	return n, nil
}

// scriptedScorer returns a canned breakdown per candidate item name.
type scriptedScorer struct {
	byItem map[string]matching.Breakdown
	within map[string]bool
	err    error
}

func (s *scriptedScorer) Score(_ context.Context, p matching.Pair) (matching.Breakdown, bool, error) {
	if s.err != nil {
		return matching.Breakdown{}, false, s.err
	}
	within, ok := s.within[p.Candidate.ItemName]
	if !ok {
		within = true
	}
	return s.byItem[p.Candidate.ItemName], within, nil
}

type fixture struct {
	supplies *fakeSupplyRepo
	demands  *fakeDemandRepo
	saved    *fakeSavedRepo
	cache    *fakeCache
	svc      IMatchSearchService
}

func newFixture(t *testing.T, scorer Scorer) *fixture {
	t.Helper()
	f := &fixture{
		supplies: newFakeSupplyRepo(),
		demands:  newFakeDemandRepo(),
		saved:    &fakeSavedRepo{},
		cache:    newFakeCache(),
	}
	if scorer == nil {
		scorer = LocalScorer{}
	}
	log := zerolog.Nop()
	f.svc = NewMatchSearchService(
		f.supplies, f.demands, f.saved,
		f.cache, cache.NewCrossInvalidator(f.cache, log),
		scorer, cache.DefaultTTL, log,
	)
	return f
}

func ptr(v float64) *float64 { return &v }

func testDemand(orgLat, orgLng float64) entity.Demand {
	return entity.Demand{
		ID:              uuid.New(),
		OrgID:           uuid.New(),
		CategoryID:      3,
		ItemName:        "rice",
		MaxPricePerUnit: 100,
		Currency:        "USD",
		Quantity:        50,
		QuantityUnit:    "kg",
		SearchRadius:    100,
		IsActive:        true,
		Org: entity.Organisation{
			OrgName:   "Relief Org",
			Latitude:  ptr(orgLat),
			Longitude: ptr(orgLng),
		},
		Category: entity.ItemCategory{CategoryName: "food"},
	}
}

func testSupply(name string, price float64, orgLat, orgLng float64) entity.Supply {
	return entity.Supply{
		ID:           uuid.New(),
		OrgID:        uuid.New(),
		CategoryID:   3,
		ItemName:     name,
		PricePerUnit: price,
		Currency:     "USD",
		Quantity:     40,
		QuantityUnit: "kg",
		SearchRadius: 100,
		IsActive:     true,
		Org: entity.Organisation{
			OrgName:   "Supplier Org",
			Latitude:  ptr(orgLat),
			Longitude: ptr(orgLng),
		},
		Category: entity.ItemCategory{CategoryName: "food"},
	}
}

func TestSearchComputesAndCaches(t *testing.T) {
	f := newFixture(t, nil)
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand
	supply := testSupply("rice", 90, 0, 0.5)
	f.supplies.candidates = []entity.Supply{supply}

	env, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{})
	require.NoError(t, err)

	assert.False(t, env.Cached)
	assert.Equal(t, entity.ListingTypeDemand, env.SourceType)
	assert.Equal(t, demand.ID, env.SourceID)
	assert.Equal(t, 1, env.TotalResults)
	assert.Equal(t, 100.0, env.SearchRadiusKm)
	require.Len(t, env.Results, 1)

	got := env.Results[0]
	assert.Equal(t, supply.ID, got.ID)
	assert.Equal(t, "Supplier Org", got.OrgName)
	require.NotNil(t, got.DistanceKm)
	assert.InDelta(t, 55.6, *got.DistanceKm, 0.2)
	assert.Equal(t, matching.PriceLabelWithinBudget, got.MatchLabels.Price)
	assert.Greater(t, got.MatchScore, 0.5)

	assert.Equal(t, demand.OrgID, f.supplies.excludedOrg, "own org must be excluded from candidates")

	key := cache.SearchKey(entity.ListingTypeDemand, demand.ID.String())
	stored, ok := f.cache.entries[key]
	require.True(t, ok, "search result should be cached")
	assert.Equal(t, cache.DefaultTTL, stored.ttl)

	var cached dto.SearchEnvelope
	require.NoError(t, json.Unmarshal([]byte(stored.value), &cached))
	assert.False(t, cached.Cached)
	assert.Equal(t, env.TotalResults, cached.TotalResults)
}

func TestSearchCacheHit(t *testing.T) {
	f := newFixture(t, nil)
	id := uuid.New()

	seed := dto.SearchEnvelope{
		SourceType:   entity.ListingTypeSupply,
		SourceID:     id,
		TotalResults: 2,
	}
	payload, err := json.Marshal(seed)
	require.NoError(t, err)
	key := cache.SearchKey(entity.ListingTypeSupply, id.String())
	f.cache.entries[key] = fakeCacheEntry{value: string(payload), ttl: 300 * time.Second}

	// no listing in the repo: a hit must never reach the store
	env, err := f.svc.Search(context.Background(), entity.ListingTypeSupply, id, SearchOptions{})
	require.NoError(t, err)

	assert.True(t, env.Cached)
	assert.Equal(t, 2, env.TotalResults)
	require.NotNil(t, env.CacheExpiresInSeconds)
	assert.Equal(t, int64(300), *env.CacheExpiresInSeconds)
	assert.Zero(t, f.cache.setCount, "a hit must not rewrite the entry")
}

func TestSearchForceRefreshBypassesCache(t *testing.T) {
	f := newFixture(t, nil)
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand
	f.supplies.candidates = []entity.Supply{testSupply("rice", 90, 0, 0.1)}

	key := cache.SearchKey(entity.ListingTypeDemand, demand.ID.String())
	f.cache.entries[key] = fakeCacheEntry{value: `{"total_results":99}`, ttl: time.Minute}

	env, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{ForceRefresh: true})
	require.NoError(t, err)

	assert.False(t, env.Cached)
	assert.Equal(t, 1, env.TotalResults)
	assert.Equal(t, 1, f.cache.setCount, "refresh must overwrite the entry")
}

func TestSearchCorruptCacheEntryRecomputes(t *testing.T) {
	f := newFixture(t, nil)
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand

	key := cache.SearchKey(entity.ListingTypeDemand, demand.ID.String())
	f.cache.entries[key] = fakeCacheEntry{value: "{not json", ttl: time.Minute}

	env, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{})
	require.NoError(t, err)
	assert.False(t, env.Cached)
}

func TestSearchCacheDownStillServes(t *testing.T) {
	f := newFixture(t, nil)
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand
	f.supplies.candidates = []entity.Supply{testSupply("rice", 90, 0, 0.1)}
	f.cache.getErr = errors.New("connection refused")
	f.cache.setErr = errors.New("connection refused")

	env, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, env.TotalResults)
	assert.False(t, env.Cached)
}

func TestSearchOrdering(t *testing.T) {
	f := newFixture(t, &scriptedScorer{
		byItem: map[string]matching.Breakdown{
			"top":      {TotalScore: 0.9, DistanceKm: ptr(30)},
			"near":     {TotalScore: 0.8, DistanceKm: ptr(5)},
			"far":      {TotalScore: 0.8, DistanceKm: ptr(10)},
			"nowhere":  {TotalScore: 0.8},
			"excluded": {TotalScore: 0.99},
		},
		within: map[string]bool{"excluded": false},
	})
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand
	f.supplies.candidates = []entity.Supply{
		testSupply("nowhere", 90, 0, 0),
		testSupply("far", 90, 0, 0),
		testSupply("excluded", 90, 0, 0),
		testSupply("top", 90, 0, 0),
		testSupply("near", 90, 0, 0),
	}

	env, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, env.Results, 4)

	names := make([]string, 0, len(env.Results))
	for _, r := range env.Results {
		names = append(names, r.ItemName)
	}
	assert.Equal(t, []string{"top", "near", "far", "nowhere"}, names)
}

func TestSearchOrderingIsStableAcrossRuns(t *testing.T) {
	f := newFixture(t, nil)
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand
	for i := 0; i < 20; i++ {
		f.supplies.candidates = append(f.supplies.candidates, testSupply("rice", 90, 0, 0.1))
	}

	first, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{ForceRefresh: true})
	require.NoError(t, err)
	for run := 0; run < 10; run++ {
		again, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{ForceRefresh: true})
		require.NoError(t, err)
		for i := range first.Results {
			assert.Equal(t, first.Results[i].ID, again.Results[i].ID)
		}
	}
}

func TestSearchRadiusOverride(t *testing.T) {
	f := newFixture(t, nil)
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand
	// ~55.6km away: inside the listing's 100km radius, outside 40km
	f.supplies.candidates = []entity.Supply{testSupply("rice", 90, 0, 0.5)}

	env, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{RadiusOverride: 40})
	require.NoError(t, err)
	assert.Equal(t, 40.0, env.SearchRadiusKm)
	assert.Empty(t, env.Results)
}

func TestSearchMissingListing(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Search(context.Background(), entity.ListingTypeSupply, uuid.New(), SearchOptions{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSearchInvalidType(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Search(context.Background(), "orders", uuid.New(), SearchOptions{})
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSearchScorerFailureFailsClosed(t *testing.T) {
	f := newFixture(t, &scriptedScorer{err: errors.New("scoring worker unreachable")})
	demand := testDemand(0, 0)
	f.demands.byID[demand.ID] = demand
	f.supplies.candidates = []entity.Supply{testSupply("rice", 90, 0, 0.1)}

	_, err := f.svc.Search(context.Background(), entity.ListingTypeDemand, demand.ID, SearchOptions{})
	assert.ErrorIs(t, err, ErrScoringUnavailable)

	key := cache.SearchKey(entity.ListingTypeDemand, demand.ID.String())
	_, ok := f.cache.entries[key]
	assert.False(t, ok, "failed searches must not be cached")
}

func TestSearchSupplySide(t *testing.T) {
	f := newFixture(t, nil)
	supply := testSupply("rice", 90, 0, 0)
	f.supplies.byID[supply.ID] = supply
	demand := testDemand(0, 0.1)
	f.demands.candidates = []entity.Demand{demand}

	env, err := f.svc.Search(context.Background(), entity.ListingTypeSupply, supply.ID, SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, entity.ListingTypeSupply, env.SourceType)
	require.Len(t, env.Results, 1)
	assert.Equal(t, demand.ID, env.Results[0].ID)
	// candidate price is the demand's budget
	assert.Equal(t, demand.MaxPricePerUnit, env.Results[0].Price)
}

func TestRate(t *testing.T) {
	f := newFixture(t, nil)
	supply := testSupply("rice", 90, 0, 0)
	f.supplies.byID[supply.ID] = supply

	t.Run("rounds to half star", func(t *testing.T) {
		got, err := f.svc.Rate(context.Background(), entity.ListingTypeSupply, supply.ID, 3.3)
		require.NoError(t, err)
		assert.Equal(t, 3.5, got)
		assert.Equal(t, 3.5, f.supplies.ratings[supply.ID])
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := f.svc.Rate(context.Background(), entity.ListingTypeSupply, supply.ID, 6)
		var verr *apperrors.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("missing listing", func(t *testing.T) {
		f.demands.ratingErr = gorm.ErrRecordNotFound
		_, err := f.svc.Rate(context.Background(), entity.ListingTypeDemand, uuid.New(), 4)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestSaveMatch(t *testing.T) {
	f := newFixture(t, nil)
	orgID := uuid.New()
	payload := dto.SaveMatchDto{
		SourceType:  entity.ListingTypeDemand,
		SourceID:    uuid.New(),
		MatchedType: entity.ListingTypeSupply,
		MatchedID:   uuid.New(),
		MatchScore:  ptr(0.82),
		Action:      entity.MatchActionSaved,
	}

	require.NoError(t, f.svc.SaveMatch(context.Background(), orgID, payload))
	require.Len(t, f.saved.upserted, 1)
	got := f.saved.upserted[0]
	assert.Equal(t, orgID, got.OrgID)
	assert.Equal(t, payload.SourceID, got.SourceID)
	assert.Equal(t, entity.MatchActionSaved, got.Action)

	t.Run("bad action", func(t *testing.T) {
		bad := payload
		bad.Action = "starred"
		var verr *apperrors.ValidationError
		assert.ErrorAs(t, f.svc.SaveMatch(context.Background(), orgID, bad), &verr)
	})

	t.Run("missing ids", func(t *testing.T) {
		bad := payload
		bad.MatchedID = uuid.Nil
		var verr *apperrors.ValidationError
		assert.ErrorAs(t, f.svc.SaveMatch(context.Background(), orgID, bad), &verr)
	})
}

func TestListSavedAndDismissed(t *testing.T) {
	f := newFixture(t, nil)
	orgID := uuid.New()
	sourceID := uuid.New()
	f.saved.stored = []entity.SavedMatch{
		{OrgID: orgID, SourceType: entity.ListingTypeDemand, SourceID: sourceID, MatchedType: entity.ListingTypeSupply, MatchedID: uuid.New(), Action: entity.MatchActionSaved},
		{OrgID: orgID, SourceType: entity.ListingTypeDemand, SourceID: sourceID, MatchedType: entity.ListingTypeSupply, MatchedID: uuid.New(), Action: entity.MatchActionDismissed},
		{OrgID: uuid.New(), SourceType: entity.ListingTypeDemand, SourceID: uuid.New(), MatchedType: entity.ListingTypeSupply, MatchedID: uuid.New(), Action: entity.MatchActionSaved},
	}

	saved, err := f.svc.ListSaved(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, entity.MatchActionSaved, saved[0].Action)

	dismissed, err := f.svc.ListDismissed(context.Background(), orgID, entity.ListingTypeDemand, sourceID)
	require.NoError(t, err)
	require.Len(t, dismissed, 1)
	assert.Equal(t, entity.MatchActionDismissed, dismissed[0].Action)
}

func TestEffectiveRadius(t *testing.T) {
	assert.Equal(t, 25.0, effectiveRadius(25, 100))
	assert.Equal(t, 100.0, effectiveRadius(0, 100))
	assert.Equal(t, DefaultSearchRadiusKm, effectiveRadius(0, 0))
}
