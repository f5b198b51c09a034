// Package price resolves unit prices through a ranked chain of sources.
//
// Sources are unreliable by nature: a failing source is logged and the next
// one is asked. When every source fails the quote is reported as not found,
// never as an error, and callers fall back to a cost-basis price.
package price

import (
	"context"
	"regexp"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Source is one tier of the price chain.
type Source interface {
	Name() string
	// Price returns the unit price of asset on day in the asset currency.
	// The boolean is false when the source has no price.
	Price(ctx context.Context, asset string, day date.Date) (decimal.Decimal, bool, error)
}

// BulkSource is a Source able to price many assets in a single fetch.
// Missing assets are absent from the result. A partial failure returns the
// prices obtained along with an error.
type BulkSource interface {
	Source
	Prices(ctx context.Context, assets []string, day date.Date) (map[string]decimal.Decimal, error)
}

// Quote is the outcome of a resolution. Found is false when no source could
// price the asset.
type Quote struct {
	Asset  string
	Date   date.Date
	Price  decimal.Decimal
	Source string
	Found  bool
}

// BulkTicker matches exchange tickers that quote APIs can fetch in bulk,
// e.g. "AAPL.US" or "VWCE.XETRA".
var BulkTicker = regexp.MustCompile(`^[A-Z0-9.\-]{1,12}\.[A-Z]{1,6}$`)
