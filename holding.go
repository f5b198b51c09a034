package folio

import (
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// HoldingSnapshot is the valuation of one position at a point in time.
//
// It is computed wholesale on each run and never persisted as mutable
// state. Money figures (CostBasis, MarketValue, UnrealizedPnL) are in the
// reporting currency, Price is in Currency and FXRate converts Currency into
// the reporting currency.
type HoldingSnapshot struct {
	Asset         string          `json:"asset"`
	Name          string          `json:"name,omitempty"`
	Quantity      Quantity        `json:"quantity"`
	CostBasis     decimal.Decimal `json:"costBasis"`
	AverageCost   decimal.Decimal `json:"averageCost"`
	Price         decimal.Decimal `json:"price"`
	PriceSource   string          `json:"priceSource"`
	MarketValue   decimal.Decimal `json:"marketValue"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	PnLPercent    decimal.Decimal `json:"pnlPercent"`
	Currency      string          `json:"currency"`
	FXRate        decimal.Decimal `json:"fxRate"`
	Weight        decimal.Decimal `json:"weight"`
	Manual        bool            `json:"manual,omitempty"`
}

// PersistedHoldingRecord is a position captured independently of the
// ledger, used as the truth during reconciliation.
type PersistedHoldingRecord struct {
	SnapshotDate date.Date       `json:"snapshotDate"`
	Asset        string          `json:"asset"`
	Quantity     Quantity        `json:"quantity"`
	MarketValue  decimal.Decimal `json:"marketValue"`
	Currency     string          `json:"currency"`
}

// Kind implements Record.
func (PersistedHoldingRecord) Kind() Kind { return KindSnapshot }

// ImpliedPrice returns the unit price implied by the record, if any.
func (r PersistedHoldingRecord) ImpliedPrice() (decimal.Decimal, bool) {
	if !r.Quantity.IsPositive() || !r.MarketValue.IsPositive() {
		return decimal.Zero, false
	}
	return r.MarketValue.Div(r.Quantity.Decimal()), true
}
