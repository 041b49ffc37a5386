package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmatch/internal/cache"
	"marketmatch/internal/domain/entity"
	"marketmatch/internal/repository"
)

// stubs embed the interface and override only the sweeper's methods;
// anything else would be a bug and panics.
type stubSupplyRepo struct {
	repository.ISupplyRepository
	ids []uuid.UUID
	err error
}

func (s *stubSupplyRepo) DeactivateExpired(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return s.ids, s.err
}

type stubDemandRepo struct {
	repository.IDemandRepository
	ids []uuid.UUID
	err error
}

func (s *stubDemandRepo) DeactivateLapsed(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return s.ids, s.err
}

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

func TestSweepInvalidatesDeactivatedListings(t *testing.T) {
	supplyID, demandID := uuid.New(), uuid.New()
	rec := &recordingCache{}
	log := zerolog.Nop()
	sweeper := NewSweeperService(
		&stubSupplyRepo{ids: []uuid.UUID{supplyID}},
		&stubDemandRepo{ids: []uuid.UUID{demandID}},
		cache.NewCrossInvalidator(rec, log),
		log,
	)

	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Contains(t, rec.deletedKeys, cache.SearchKey(entity.ListingTypeSupply, supplyID.String()))
	assert.Contains(t, rec.deletedKeys, cache.SearchKey(entity.ListingTypeDemand, demandID.String()))
	assert.Contains(t, rec.deletedPatterns, cache.SearchPattern(entity.ListingTypeSupply))
	assert.Contains(t, rec.deletedPatterns, cache.SearchPattern(entity.ListingTypeDemand))
}

func TestSweepNothingToDo(t *testing.T) {
	rec := &recordingCache{}
	log := zerolog.Nop()
	sweeper := NewSweeperService(&stubSupplyRepo{}, &stubDemandRepo{}, cache.NewCrossInvalidator(rec, log), log)

	require.NoError(t, sweeper.Sweep(context.Background()))
	assert.Empty(t, rec.deletedKeys)
	assert.Empty(t, rec.deletedPatterns)
}

func TestSweepPropagatesRepoErrors(t *testing.T) {
	rec := &recordingCache{}
	log := zerolog.Nop()
	boom := errors.New("db down")
	sweeper := NewSweeperService(&stubSupplyRepo{err: boom}, &stubDemandRepo{}, cache.NewCrossInvalidator(rec, log), log)

	assert.ErrorIs(t, sweeper.Sweep(context.Background()), boom)
}
