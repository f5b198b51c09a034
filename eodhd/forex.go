package eodhd

import (
	"context"
	"fmt"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Name identifies the client as a price or rate source.
func (c *Client) Name() string { return "eodhd" }

// Rate returns the from/to exchange rate on day, using the "FOREX" virtual
// exchange. It makes the client an fx provider.
//
// eodhd forex close values are unreliable, most of the time equal to the
// open. The open of the next day is closer to the truth, so the rate of day
// is the open of the first trading day after it. For today, the real-time
// quote is used.
func (c *Client) Rate(ctx context.Context, from, to string, day date.Date) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	ticker := fmt.Sprintf("%s%s.FOREX", from, to)

	if !day.Before(date.Today()) {
		p, ok, err := c.Price(ctx, ticker, day)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w: %w", ticker, folio.ErrExternalSource, err)
		}
		if !ok {
			return decimal.Zero, fmt.Errorf("%s: %w: no quote", ticker, folio.ErrExternalSource)
		}
		return p, nil
	}

	history, err := c.eod(ctx, ticker, day.Add(1), day.Add(lookBack))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %w", ticker, folio.ErrExternalSource, err)
	}
	for _, h := range history {
		if h.Date.After(day) && h.Open.Valid && h.Open.IsPositive() {
			return h.Open.Decimal, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%s: %w: no open after %v", ticker, folio.ErrExternalSource, day)
}
