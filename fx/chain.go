package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/folio/date"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Quote is a resolved exchange rate and the provider that supplied it.
type Quote struct {
	From, To string
	Date     date.Date
	Rate     decimal.Decimal
	Source   string
}

// Chain asks its providers in order and returns the first positive rate.
// Each tier failure is logged and the chain proceeds. Resolved quotes are
// memoized for the lifetime of the Chain.
type Chain struct {
	providers []Provider
	memo      *cache.Cache
	log       zerolog.Logger
}

// NewChain creates a Chain over providers, ranked by position.
func NewChain(log zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		memo:      cache.New(12*time.Hour, time.Hour),
		log:       log.With().Str("component", "fx").Logger(),
	}
}

func (c *Chain) Name() string { return "chain" }

// Rate implements Provider.
func (c *Chain) Rate(ctx context.Context, from, to string, on date.Date) (decimal.Decimal, error) {
	q, err := c.Quote(ctx, from, to, on)
	return q.Rate, err
}

// Quote resolves the from/to rate on a given day.
func (c *Chain) Quote(ctx context.Context, from, to string, on date.Date) (Quote, error) {
	q := Quote{From: from, To: to, Date: on}
	if from == to {
		q.Rate, q.Source = one, "identity"
		return q, nil
	}

	key := fmt.Sprintf("%s|%s|%s", from, to, on)
	if v, found := c.memo.Get(key); found {
		return v.(Quote), nil
	}

	var errs []error
	for _, p := range c.providers {
		rate, err := p.Rate(ctx, from, to, on)
		if err == nil && rate.IsPositive() {
			c.log.Debug().
				Str("from", from).
				Str("to", to).
				Stringer("date", on).
				Stringer("rate", rate).
				Str("source", p.Name()).
				Msg("resolved exchange rate")
			q.Rate, q.Source = rate, p.Name()
			c.memo.Set(key, q, cache.DefaultExpiration)
			return q, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: non positive rate %s", p.Name(), rate)
		}
		if !errors.Is(err, ErrUnsupported) {
			c.log.Warn().Err(err).Str("from", from).Str("to", to).Str("source", p.Name()).Msg("rate lookup failed, trying next source")
		}
		errs = append(errs, err)
	}
	return q, fmt.Errorf("no rate available for %s/%s on %v: %w", from, to, on, errors.Join(errs...))
}
