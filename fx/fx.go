// Package fx provides exchange rates through a ranked chain of providers.
//
// A rate is the number of units of the quote currency for one unit of the
// base currency: Rate(ctx, "USD", "EUR", on) ≈ 0.92.
package fx

import (
	"context"
	"errors"
	"fmt"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Provider is a source of exchange rates.
type Provider interface {
	Name() string
	Rate(ctx context.Context, from, to string, on date.Date) (decimal.Decimal, error)
}

// ErrUnsupported is returned by providers that do not cover a currency pair
// or a date.
var ErrUnsupported = errors.New("unsupported currency pair")

var one = decimal.NewFromInt(1)

// Invert returns the rate of the reverse pair.
func Invert(rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return one.DivRound(rate, 16)
}

// Convert converts amount from one currency to another using p.
func Convert(ctx context.Context, p Provider, amount decimal.Decimal, from, to string, on date.Date) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := p.Rate(ctx, from, to, on)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// external wraps err as an external source failure of provider name.
func external(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, folio.ErrExternalSource, err)
}
