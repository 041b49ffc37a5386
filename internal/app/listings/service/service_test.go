package service

import (
	"context"
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
)

type fakeSupplyRepo struct {
	created    []entity.Supply
	patches    []map[string]interface{}
	deleted    []uuid.UUID
	patchErr   error
	findResult entity.Supply
	findErr    error
}

func (f *fakeSupplyRepo) Create(_ context.Context, s entity.Supply) (entity.Supply, error) {
	s.ID = uuid.New()
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeSupplyRepo) FindActive(_ context.Context, _ uuid.UUID) (entity.Supply, error) {
	return f.findResult, f.findErr
}

func (f *fakeSupplyRepo) FindByOrg(_ context.Context, _ uuid.UUID) ([]entity.Supply, error) {
	return []entity.Supply{f.findResult}, nil
}

func (f *fakeSupplyRepo) FindActiveCandidates(_ context.Context, _ uuid.UUID) ([]entity.Supply, error) {
	return nil, nil
}

func (f *fakeSupplyRepo) Patch(_ context.Context, _, _ uuid.UUID, updates map[string]interface{}) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, updates)
	return nil
}

func (f *fakeSupplyRepo) SoftDelete(_ context.Context, id, _ uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSupplyRepo) DeactivateExpired(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeSupplyRepo) SetRating(_ context.Context, _ uuid.UUID, _ float64) error { return nil }

type fakeDemandRepo struct {
	created []entity.Demand
	patches []map[string]interface{}
	deleted []uuid.UUID
}

func (f *fakeDemandRepo) Create(_ context.Context, d entity.Demand) (entity.Demand, error) {
	d.ID = uuid.New()
	f.created = append(f.created, d)
	return d, nil
}

func (f *fakeDemandRepo) FindActive(_ context.Context, _ uuid.UUID) (entity.Demand, error) {
	return entity.Demand{}, gorm.ErrRecordNotFound
}

func (f *fakeDemandRepo) FindByOrg(_ context.Context, _ uuid.UUID) ([]entity.Demand, error) {
	return nil, nil
}

func (f *fakeDemandRepo) FindActiveCandidates(_ context.Context, _ uuid.UUID) ([]entity.Demand, error) {
	return nil, nil
}

func (f *fakeDemandRepo) Patch(_ context.Context, _, _ uuid.UUID, updates map[string]interface{}) error {
	f.patches = append(f.patches, updates)
	return nil
}

func (f *fakeDemandRepo) SoftDelete(_ context.Context, id, _ uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDemandRepo) DeactivateLapsed(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeDemandRepo) SetRating(_ context.Context, _ uuid.UUID, _ float64) error { return nil }

type fakeCategoryRepo struct {
	resolved []string
	names    map[uint]string
}

func (f *fakeCategoryRepo) ResolveOrCreate(_ context.Context, name string) uint {
	f.resolved = append(f.resolved, name)
	if name == "" {
		return entity.UncategorizedID
	}
	return 7
}

func (f *fakeCategoryRepo) EnsureUncategorized(_ context.Context) error { return nil }

func (f *fakeCategoryRepo) FindName(_ context.Context, id uint) (string, error) {
	return f.names[id], nil
}

// recordingCache tracks the invalidation traffic a write produces.
type recordingCache struct {
	deletedKeys     []string
	deletedPatterns []string
}

func (c *recordingCache) Get(_ context.Context, _ string) (string, time.Duration, error) {
	return "", 0, cache.ErrMiss
}

func (c *recordingCache) Set(_ context.Context, _, _ string, _ time.Duration) error { return nil }

func (c *recordingCache) Delete(_ context.Context, key string) error {
	c.deletedKeys = append(c.deletedKeys, key)
	return nil
}

func (c *recordingCache) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	c.deletedPatterns = append(c.deletedPatterns, pattern)
	return 1, nil
}

type fixture struct {
	supplies   *fakeSupplyRepo
	demands    *fakeDemandRepo
	categories *fakeCategoryRepo
	cache      *recordingCache
	svc        IListingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		supplies:   &fakeSupplyRepo{},
		demands:    &fakeDemandRepo{},
		categories: &fakeCategoryRepo{names: map[uint]string{7: "food"}},
		cache:      &recordingCache{},
	}
	log := zerolog.Nop()
	f.svc = NewListingService(f.supplies, f.demands, f.categories,
		cache.NewCrossInvalidator(f.cache, log), log)
	return f
}

func TestCreateSupply(t *testing.T) {
	f := newFixture(t)
	orgID := uuid.New()

	got, err := f.svc.CreateSupply(context.Background(), orgID, dto.CreateSupplyDto{
		ItemName:     "  Basmati Rice ",
		ItemCategory: "food",
		PricePerUnit: 90,
		Quantity:     40,
	})
	require.NoError(t, err)

	require.Len(t, f.supplies.created, 1)
	created := f.supplies.created[0]
	assert.Equal(t, "Basmati Rice", created.ItemName)
	assert.Equal(t, uint(7), created.CategoryID)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, "unit", created.QuantityUnit)
	assert.Equal(t, 50.0, created.SearchRadius)
	assert.True(t, created.IsActive)

	assert.Equal(t, "food", got.ItemCategory)
	assert.Equal(t, orgID, got.OrgID)

	// a new supply only makes cached demand searches stale
	assert.Empty(t, f.cache.deletedKeys)
	assert.Equal(t, []string{cache.SearchPattern(entity.ListingTypeDemand)}, f.cache.deletedPatterns)
}

func TestCreateSupplyValidation(t *testing.T) {
	f := newFixture(t)
	var verr *apperrors.ValidationError

	_, err := f.svc.CreateSupply(context.Background(), uuid.New(), dto.CreateSupplyDto{ItemName: "   "})
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.CreateSupply(context.Background(), uuid.Nil, dto.CreateSupplyDto{ItemName: "rice"})
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.CreateSupply(context.Background(), uuid.New(), dto.CreateSupplyDto{ItemName: "rice", PricePerUnit: -1})
	assert.ErrorAs(t, err, &verr)

	assert.Empty(t, f.supplies.created)
	assert.Empty(t, f.cache.deletedPatterns)
}

func TestCreateDemandUncategorizedFallback(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateDemand(context.Background(), uuid.New(), dto.CreateDemandDto{
		ItemName:        "rice",
		MaxPricePerUnit: 100,
		Quantity:        50,
	})
	require.NoError(t, err)

	require.Len(t, f.demands.created, 1)
	assert.Equal(t, entity.UncategorizedID, f.demands.created[0].CategoryID)
	assert.Equal(t, []string{cache.SearchPattern(entity.ListingTypeSupply)}, f.cache.deletedPatterns)
}

func TestUpdateListing(t *testing.T) {
	f := newFixture(t)
	id, orgID := uuid.New(), uuid.New()

	name := "parboiled rice"
	price := 85.0
	budget := 120.0
	err := f.svc.UpdateListing(context.Background(), entity.ListingTypeSupply, id, orgID, dto.UpdateListingDto{
		ItemName:        &name,
		PricePerUnit:    &price,
		MaxPricePerUnit: &budget, // demand-side field, must be ignored
	})
	require.NoError(t, err)

	require.Len(t, f.supplies.patches, 1)
	patch := f.supplies.patches[0]
	assert.Equal(t, "parboiled rice", patch["item_name"])
	assert.Equal(t, 85.0, patch["price_per_unit"])
	assert.NotContains(t, patch, "max_price_per_unit")

	// own entry dropped, opposite side wiped
	assert.Equal(t, []string{cache.SearchKey(entity.ListingTypeSupply, id.String())}, f.cache.deletedKeys)
	assert.Equal(t, []string{cache.SearchPattern(entity.ListingTypeDemand)}, f.cache.deletedPatterns)
}

func TestUpdateListingEmptyPatch(t *testing.T) {
	f := newFixture(t)
	var verr *apperrors.ValidationError
	err := f.svc.UpdateListing(context.Background(), entity.ListingTypeDemand, uuid.New(), uuid.New(), dto.UpdateListingDto{})
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, f.demands.patches)
}

func TestUpdateListingWrongOwner(t *testing.T) {
	f := newFixture(t)
	f.supplies.patchErr = gorm.ErrRecordNotFound

	name := "rice"
	err := f.svc.UpdateListing(context.Background(), entity.ListingTypeSupply, uuid.New(), uuid.New(), dto.UpdateListingDto{ItemName: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.cache.deletedPatterns, "failed writes must not invalidate")
}

func TestDeleteListing(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	require.NoError(t, f.svc.DeleteListing(context.Background(), entity.ListingTypeDemand, id, uuid.New()))
	assert.Equal(t, []uuid.UUID{id}, f.demands.deleted)
	assert.Equal(t, []string{cache.SearchKey(entity.ListingTypeDemand, id.String())}, f.cache.deletedKeys)
	assert.Equal(t, []string{cache.SearchPattern(entity.ListingTypeSupply)}, f.cache.deletedPatterns)
}

func TestGetListingErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetListing(context.Background(), "basket", uuid.New())
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)

	f.supplies.findErr = gorm.ErrRecordNotFound
	_, err = f.svc.GetListing(context.Background(), entity.ListingTypeSupply, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
