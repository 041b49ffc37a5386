// Package service deactivates listings whose dates have lapsed: supplies
// past their expiry date and demands past their required-by date.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"marketmatch/internal/cache"
	"marketmatch/internal/domain/entity"
	"marketmatch/internal/repository"
)

type SweeperService struct {
	supplyRepo  repository.ISupplyRepository
	demandRepo  repository.IDemandRepository
	invalidator *cache.CrossInvalidator
	now         func() time.Time
	log         zerolog.Logger
}

func NewSweeperService(
	supplyRepo repository.ISupplyRepository,
	demandRepo repository.IDemandRepository,
	invalidator *cache.CrossInvalidator,
	log zerolog.Logger,
) *SweeperService {
	return &SweeperService{
		supplyRepo:  supplyRepo,
		demandRepo:  demandRepo,
		invalidator: invalidator,
		now:         time.Now,
		log:         log.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Sweep runs one pass over both sides. A deactivated listing gets the
// same cache treatment as a deleted one.
func (s *SweeperService) Sweep(ctx context.Context) error {
	now := s.now().UTC()

	supplyIDs, err := s.supplyRepo.DeactivateExpired(ctx, now)
	if err != nil {
		return err
	}
	for _, id := range supplyIDs {
		s.invalidator.OnListingChanged(ctx, entity.ListingTypeSupply, id.String(), true)
	}

	demandIDs, err := s.demandRepo.DeactivateLapsed(ctx, now)
	if err != nil {
		return err
	}
	for _, id := range demandIDs {
		s.invalidator.OnListingChanged(ctx, entity.ListingTypeDemand, id.String(), true)
	}

	if len(supplyIDs)+len(demandIDs) > 0 {
		s.log.Info().
			Int("supplies", len(supplyIDs)).
			Int("demands", len(demandIDs)).
			Msg("deactivated lapsed listings")
	}
	return nil
}
