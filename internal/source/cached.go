package source

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/cache"
	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// ListingCache is the subset of *cache.Client used here.
type ListingCache interface {
	GetListings(ctx context.Context, key string) ([]domain.Listing, error)
	SetListings(ctx context.Context, key string, listings []domain.Listing) error
}

// Cached serves repeated searches from the listing cache. Cache errors are
// logged and otherwise ignored.
type Cached struct {
	inner Source
	cache ListingCache
}

// NewCached wraps inner. With a nil cache it is a passthrough.
func NewCached(inner Source, c ListingCache) *Cached {
	return &Cached{inner: inner, cache: c}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Fetch(ctx context.Context, q Query) ([]domain.Listing, error) {
	if c.cache == nil {
		return c.inner.Fetch(ctx, q)
	}

	key := cache.SearchKey(c.inner.Name(), q.Categories, q.MinRating, q.Limit, q.Location())
	if hit, err := c.cache.GetListings(ctx, key); err != nil {
		log.Warn().Err(err).Msg("listing cache read failed")
	} else if hit != nil {
		log.Info().Int("listings", len(hit)).Msg("listings served from cache")
		return hit, nil
	}

	listings, err := c.inner.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(listings) > 0 {
		if err := c.cache.SetListings(ctx, key, listings); err != nil {
			log.Warn().Err(err).Msg("listing cache write failed")
		}
	}
	return listings, nil
}
