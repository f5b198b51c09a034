package price

import (
	"context"
	"fmt"

	"github.com/etnz/folio/date"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Resolver asks its sources in rank order and returns the first price
// found. Results, found or not, are cached per (asset, date) for the life of
// the Resolver.
type Resolver struct {
	sources []Source
	cache   *cache.Cache
	log     zerolog.Logger
}

// NewResolver creates a Resolver over sources ranked by position.
func NewResolver(log zerolog.Logger, sources ...Source) *Resolver {
	return &Resolver{
		sources: sources,
		cache:   cache.New(cache.NoExpiration, 0),
		log:     log.With().Str("component", "price").Logger(),
	}
}

func key(asset string, day date.Date) string { return fmt.Sprintf("%s|%s", asset, day) }

// Resolve returns the price of asset on day.
func (r *Resolver) Resolve(ctx context.Context, asset string, day date.Date) Quote {
	if q, ok := r.cached(asset, day); ok {
		return q
	}
	return r.store(r.chain(ctx, r.sources, asset, day))
}

func (r *Resolver) cached(asset string, day date.Date) (Quote, bool) {
	if v, found := r.cache.Get(key(asset, day)); found {
		return v.(Quote), true
	}
	return Quote{}, false
}

func (r *Resolver) store(q Quote) Quote {
	r.cache.Set(key(q.Asset, q.Date), q, cache.NoExpiration)
	return q
}

// chain tries sources in order. It never caches.
func (r *Resolver) chain(ctx context.Context, sources []Source, asset string, day date.Date) Quote {
	q := Quote{Asset: asset, Date: day}
	for _, s := range sources {
		p, ok, err := s.Price(ctx, asset, day)
		if err != nil {
			r.log.Warn().Err(err).Str("asset", asset).Stringer("date", day).Str("source", s.Name()).Msg("price source failed, trying next")
			continue
		}
		if ok && p.IsPositive() {
			q.Price, q.Source, q.Found = p, s.Name(), true
			return q
		}
	}
	return q
}

// ResolveBatch resolves many assets at once. Assets matching BulkTicker are
// fetched in a single call to the first BulkSource of the chain, unless a
// source ranked before it already has a price. Everything else goes
// through the chain one by one, and so do bulk items the bulk call could
// not price, starting at the bulk source.
func (r *Resolver) ResolveBatch(ctx context.Context, assets []string, day date.Date) map[string]Quote {
	quotes := make(map[string]Quote, len(assets))

	bulkAt := -1
	for i, s := range r.sources {
		if _, ok := s.(BulkSource); ok {
			bulkAt = i
			break
		}
	}

	var pending []string
	seen := make(map[string]bool, len(assets))
	for _, asset := range assets {
		if seen[asset] {
			continue
		}
		seen[asset] = true
		if q, ok := r.cached(asset, day); ok {
			quotes[asset] = q
			continue
		}
		if bulkAt < 0 || !BulkTicker.MatchString(asset) {
			quotes[asset] = r.Resolve(ctx, asset, day)
			continue
		}
		if q := r.chain(ctx, r.sources[:bulkAt], asset, day); q.Found {
			quotes[asset] = r.store(q)
			continue
		}
		pending = append(pending, asset)
	}
	if len(pending) == 0 {
		return quotes
	}

	bulk := r.sources[bulkAt].(BulkSource)
	prices, err := bulk.Prices(ctx, pending, day)
	if err != nil {
		r.log.Warn().Err(err).Int("assets", len(pending)).Int("found", len(prices)).Str("source", bulk.Name()).Msg("bulk fetch partially failed")
	}
	for _, asset := range pending {
		if p, ok := prices[asset]; ok && p.IsPositive() {
			quotes[asset] = r.store(Quote{Asset: asset, Date: day, Price: p, Source: bulk.Name(), Found: true})
			continue
		}
		quotes[asset] = r.store(r.chain(ctx, r.sources[bulkAt:], asset, day))
	}
	return quotes
}
