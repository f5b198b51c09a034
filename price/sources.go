package price

import (
	"context"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// OverrideReader reads manual price overrides.
type OverrideReader interface {
	Override(ctx context.Context, asset string, day date.Date) (decimal.Decimal, bool, error)
}

// Overrides serves manually forced prices: a fixed map (configuration or
// command line) first, then the recorded overrides if Reader is set.
type Overrides struct {
	Static map[string]decimal.Decimal
	Reader OverrideReader
}

func (Overrides) Name() string { return "override" }

func (o Overrides) Price(ctx context.Context, asset string, day date.Date) (decimal.Decimal, bool, error) {
	if p, ok := o.Static[asset]; ok {
		return p, true, nil
	}
	if o.Reader == nil {
		return decimal.Zero, false, nil
	}
	return o.Reader.Override(ctx, asset, day)
}

// PriceReader reads the internal price/NAV table.
type PriceReader interface {
	// LatestPrice returns the last price of asset recorded on or before day.
	LatestPrice(ctx context.Context, asset string, day date.Date) (folio.PricePoint, bool, error)
}

// NAVTable serves the internal price/NAV table.
type NAVTable struct {
	Reader PriceReader
}

func (NAVTable) Name() string { return "nav" }

func (n NAVTable) Price(ctx context.Context, asset string, day date.Date) (decimal.Decimal, bool, error) {
	p, ok, err := n.Reader.LatestPrice(ctx, asset, day)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	return p.Price, true, nil
}

// SnapshotReader reads independently captured holding records.
type SnapshotReader interface {
	// LatestRecord returns the last snapshot record of asset dated on or
	// before day.
	LatestRecord(ctx context.Context, asset string, day date.Date) (folio.PersistedHoldingRecord, bool, error)
}

// LastManual serves the price implied by the last manually recorded
// holding: market value divided by quantity.
type LastManual struct {
	Reader SnapshotReader
}

func (LastManual) Name() string { return "last_manual" }

func (l LastManual) Price(ctx context.Context, asset string, day date.Date) (decimal.Decimal, bool, error) {
	rec, ok, err := l.Reader.LatestRecord(ctx, asset, day)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	p, ok := rec.ImpliedPrice()
	return p, ok, nil
}

// Quoter is an external quote service, such as *eodhd.Client.
type Quoter interface {
	Price(ctx context.Context, ticker string, day date.Date) (decimal.Decimal, bool, error)
	Prices(ctx context.Context, tickers []string, day date.Date) (map[string]decimal.Decimal, error)
}

// Quotes is the external quote tier. Only assets matching BulkTicker are
// looked up, others are reported as not found without any call.
type Quotes struct {
	Quoter Quoter
	Label  string
}

func (q Quotes) Name() string {
	if q.Label == "" {
		return "quote"
	}
	return q.Label
}

func (q Quotes) Price(ctx context.Context, asset string, day date.Date) (decimal.Decimal, bool, error) {
	if !BulkTicker.MatchString(asset) {
		return decimal.Zero, false, nil
	}
	return q.Quoter.Price(ctx, asset, day)
}

func (q Quotes) Prices(ctx context.Context, assets []string, day date.Date) (map[string]decimal.Decimal, error) {
	return q.Quoter.Prices(ctx, assets, day)
}
