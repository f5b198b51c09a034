package fx

import (
	"context"
	"fmt"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// RateReader reads recorded exchange rates.
type RateReader interface {
	// LatestFXRate returns the last rate of base/quote recorded on or
	// before day.
	LatestFXRate(ctx context.Context, base, quote string, day date.Date) (decimal.Decimal, bool, error)
}

// Table serves rates recorded in the store (imported fx records).
type Table struct {
	Reader RateReader
}

func (Table) Name() string { return "table" }

func (t Table) Rate(ctx context.Context, from, to string, on date.Date) (decimal.Decimal, error) {
	rate, ok, err := t.Reader.LatestFXRate(ctx, from, to, on)
	if err != nil {
		return decimal.Zero, err
	}
	if ok {
		return rate, nil
	}
	rate, ok, err = t.Reader.LatestFXRate(ctx, to, from, on)
	if err != nil {
		return decimal.Zero, err
	}
	if ok {
		return Invert(rate), nil
	}
	return decimal.Zero, fmt.Errorf("no recorded %s/%s rate: %w", from, to, ErrUnsupported)
}
