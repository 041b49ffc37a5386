package cache

import (
	"context"

	"github.com/rs/zerolog"

	"marketmatch/internal/domain/entity"
)

// CrossInvalidator keeps cached searches coherent across the two listing
// sides: any write to one side makes every cached search of the opposite
// side suspect, so the whole opposite pattern is wiped. Deliberately
// coarse; a lower hit-rate is traded for simple correctness.
//
// Invalidation never fails the write that triggered it. Errors are
// logged and swallowed; a stale entry self-heals at TTL expiry.
type CrossInvalidator struct {
	cache SearchCache
	log   zerolog.Logger
}

func NewCrossInvalidator(c SearchCache, log zerolog.Logger) *CrossInvalidator {
	return &CrossInvalidator{
		cache: c,
		log:   log.With().Str("component", "cache_invalidator").Logger(),
	}
}

// OnListingChanged runs after a create, update, or soft delete of the
// given listing. ownEntry is false for creates, which cannot have a
// cached search yet.
func (i *CrossInvalidator) OnListingChanged(ctx context.Context, listingType, listingID string, ownEntry bool) {
	if ownEntry {
		if err := i.cache.Delete(ctx, SearchKey(listingType, listingID)); err != nil {
			i.log.Warn().Err(err).
				Str("listing_type", listingType).Str("listing_id", listingID).
				Msg("own cache entry invalidation failed")
		}
	}

	opposite := entity.OppositeType(listingType)
	deleted, err := i.cache.DeleteByPattern(ctx, SearchPattern(opposite))
	if err != nil {
		i.log.Warn().Err(err).Str("pattern", SearchPattern(opposite)).
			Msg("cross-invalidation failed")
		return
	}
	if deleted > 0 {
		i.log.Info().Int("deleted", deleted).Str("side", opposite).
			Msg("cross-invalidated cached searches")
	}
}

// DropEntry removes a single cached search; idempotent.
func (i *CrossInvalidator) DropEntry(ctx context.Context, listingType, listingID string) {
	if err := i.cache.Delete(ctx, SearchKey(listingType, listingID)); err != nil {
		i.log.Warn().Err(err).
			Str("listing_type", listingType).Str("listing_id", listingID).
			Msg("cache entry invalidation failed")
	}
}
