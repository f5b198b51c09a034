// Package holdings values the portfolio on a given day.
package holdings

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/fx"
	"github.com/etnz/folio/price"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Price sources labels set by the Computer itself.
const (
	SourceCostBasis      = "cost_basis"
	SourceExternalLedger = "external_ledger"
)

// Ledger is the read side of the store used to value the portfolio.
type Ledger interface {
	folio.AssetCatalog
	AssetIDs(ctx context.Context, upTo date.Date) ([]string, error)
	Transactions(ctx context.Context, asset string, upTo date.Date) ([]folio.Transaction, error)
	ExternalAmount(ctx context.Context, line string, day date.Date) (folio.LedgerAmount, bool, error)
}

// Pricer resolves many prices at once, see price.Resolver.
type Pricer interface {
	ResolveBatch(ctx context.Context, assets []string, day date.Date) map[string]price.Quote
}

// Computer merges transaction-derived and manually tracked positions into
// a single valued portfolio.
type Computer struct {
	ledger   Ledger
	prices   Pricer
	rates    fx.Provider
	currency string // reporting currency
	valuated string // ledger valuation currency, the currency of cost basis
	manual   map[string]string
	tracker  *folio.LotTracker
	log      zerolog.Logger
}

// New returns a Computer for a ledger valued in currency, reporting in the
// same currency. manual maps the ids of the manually tracked assets to their
// external ledger line.
func New(ledger Ledger, prices Pricer, rates fx.Provider, currency string, manual map[string]string, log zerolog.Logger) *Computer {
	return &Computer{
		ledger:   ledger,
		prices:   prices,
		rates:    rates,
		currency: currency,
		valuated: currency,
		manual:   manual,
		tracker:  folio.NewLotTracker(log),
		log:      log.With().Str("component", "holdings").Logger(),
	}
}

// ReportIn sets the reporting currency. Cost basis, computed in the ledger
// currency, is converted along with the market values.
func (c *Computer) ReportIn(currency string) *Computer {
	if currency != "" {
		c.currency = currency
	}
	return c
}

// position is a held asset before valuation.
type position struct {
	folio.Position
	asset folio.Asset
	last  folio.Transaction // last transaction, for its currency and fx rate
}

// Compute values every held asset on day asOf. Rows are sorted by asset id.
func (c *Computer) Compute(ctx context.Context, asOf date.Date) ([]folio.HoldingSnapshot, error) {
	rows := make(map[string]folio.HoldingSnapshot)
	for id, line := range c.manual {
		row, ok, err := c.external(ctx, id, line, asOf)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.log.Warn().Str("asset", id).Str("line", line).Stringer("date", asOf).Msg("no external ledger amount, manual override skipped")
			continue
		}
		rows[id] = row
	}

	ids, err := c.ledger.AssetIDs(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("cannot list assets: %w", err)
	}
	var held []position
	for _, id := range ids {
		if _, overridden := rows[id]; overridden {
			continue
		}
		txs, err := c.ledger.Transactions(ctx, id, asOf)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s transactions: %w", id, err)
		}
		pos := c.tracker.Replay(id, txs, asOf)
		if !pos.Quantity.IsPositive() {
			continue
		}
		asset, _, err := c.ledger.Asset(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s metadata: %w", id, err)
		}
		p := position{Position: pos, asset: asset}
		if len(txs) > 0 {
			p.last = txs[len(txs)-1]
		}
		held = append(held, p)
	}

	toPrice := make([]string, len(held))
	for i, p := range held {
		toPrice[i] = p.Asset
	}
	quotes := c.prices.ResolveBatch(ctx, toPrice, asOf)
	for _, p := range held {
		rows[p.Asset] = c.value(ctx, p, quotes[p.Asset], asOf)
	}

	var total decimal.Decimal
	for _, r := range rows {
		total = total.Add(r.MarketValue)
	}
	out := make([]folio.HoldingSnapshot, 0, len(rows))
	for _, r := range rows {
		if !total.IsZero() {
			r.Weight = r.MarketValue.Div(total)
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b folio.HoldingSnapshot) int { return strings.Compare(a.Asset, b.Asset) })

	c.log.Info().Stringer("date", asOf).Int("holdings", len(out)).Stringer("total", total).Str("currency", c.currency).Msg("holdings computed")
	return out, nil
}

// currencyOf returns the native currency of a position.
func (c *Computer) currencyOf(p position) string {
	switch {
	case p.asset.Currency != "":
		return p.asset.Currency
	case p.last.Currency != "":
		return p.last.Currency
	}
	return c.currency
}

// rate returns the conversion rate of from into to. When no source has it,
// the fx rate of the last transaction is used if it targets the ledger
// currency, then 1.
func (c *Computer) rate(ctx context.Context, from, to string, last folio.Transaction, day date.Date) decimal.Decimal {
	if from == to {
		return decimal.NewFromInt(1)
	}
	r, err := c.rates.Rate(ctx, from, to, day)
	if err == nil && r.IsPositive() {
		return r
	}
	if to == c.valuated && last.Currency == from && last.FXRate.IsPositive() {
		c.log.Warn().Err(err).Str("from", from).Str("to", to).Str("tx", last.ID).Msg("using the last transaction fx rate")
		return last.FXRate
	}
	c.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("no fx rate, assuming parity")
	return decimal.NewFromInt(1)
}

// value turns a position into a holding row.
func (c *Computer) value(ctx context.Context, p position, q price.Quote, day date.Date) folio.HoldingSnapshot {
	qty := p.Quantity.Decimal()
	costRate := c.rate(ctx, c.valuated, c.currency, folio.Transaction{}, day)
	row := folio.HoldingSnapshot{
		Asset:       p.Asset,
		Name:        p.asset.Name,
		Quantity:    p.Quantity,
		CostBasis:   p.CostBasis.Mul(costRate),
		AverageCost: p.AverageCost().Mul(costRate),
	}

	if q.Found {
		cur := c.currencyOf(p)
		rate := c.rate(ctx, cur, c.currency, p.last, day)
		row.Price = q.Price
		row.PriceSource = q.Source
		row.Currency = cur
		row.FXRate = rate
		row.MarketValue = qty.Mul(q.Price).Mul(rate)
	} else {
		c.log.Warn().Err(folio.ErrValuationUnavailable).Str("asset", p.Asset).Stringer("date", day).Msg("valued at cost basis")
		row.Price = row.AverageCost
		row.PriceSource = SourceCostBasis
		row.Currency = c.currency
		row.FXRate = decimal.NewFromInt(1)
		row.MarketValue = row.CostBasis
	}
	c.pnl(&row)
	return row
}

// external synthesizes the single-unit row of a manually tracked asset.
func (c *Computer) external(ctx context.Context, id, line string, day date.Date) (folio.HoldingSnapshot, bool, error) {
	amt, ok, err := c.ledger.ExternalAmount(ctx, line, day)
	if err != nil {
		return folio.HoldingSnapshot{}, false, fmt.Errorf("cannot read external ledger %q: %w", line, err)
	}
	if !ok {
		return folio.HoldingSnapshot{}, false, nil
	}
	asset, _, err := c.ledger.Asset(ctx, id)
	if err != nil {
		return folio.HoldingSnapshot{}, false, fmt.Errorf("cannot read %s metadata: %w", id, err)
	}
	cur := amt.Currency
	if cur == "" {
		cur = asset.Currency
	}
	if cur == "" {
		cur = c.currency
	}
	rate := c.rate(ctx, cur, c.currency, folio.Transaction{}, day)
	mv := amt.Amount.Mul(rate)
	row := folio.HoldingSnapshot{
		Asset:       id,
		Name:        asset.Name,
		Quantity:    folio.Q(1),
		CostBasis:   mv,
		AverageCost: mv,
		Price:       amt.Amount,
		PriceSource: SourceExternalLedger,
		MarketValue: mv,
		Currency:    cur,
		FXRate:      rate,
		Manual:      true,
	}
	c.pnl(&row)
	return row, true, nil
}

// pnl fills the unrealized profit and loss of row.
func (c *Computer) pnl(row *folio.HoldingSnapshot) {
	row.UnrealizedPnL = row.MarketValue.Sub(row.CostBasis)
	if row.CostBasis.IsZero() {
		row.PnLPercent = decimal.Zero
		return
	}
	row.PnLPercent = row.UnrealizedPnL.Div(row.CostBasis).Mul(decimal.NewFromInt(100)).Round(4)
}
