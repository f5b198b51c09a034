package folio

import (
	"context"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Asset is the reference metadata of an asset. It is owned by the taxonomy
// and is read-only for the engine.
type Asset struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Class    string `json:"class,omitempty"`
	Subclass string `json:"subclass,omitempty"`
	Currency string `json:"currency"`
}

// Kind implements Record.
func (Asset) Kind() Kind { return KindAsset }

// AssetCatalog looks up asset metadata by id.
type AssetCatalog interface {
	Asset(ctx context.Context, id string) (Asset, bool, error)
}

// PricePoint is a row of the internal price/NAV table.
type PricePoint struct {
	Asset  string          `json:"asset"`
	Date   date.Date       `json:"date"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source,omitempty"`
}

// Kind implements Record.
func (PricePoint) Kind() Kind { return KindPrice }

// LedgerAmount is the amount recorded on a given day for an external ledger
// line (real estate valuation, bank wealth product balance...).
type LedgerAmount struct {
	Line     string          `json:"line"`
	Date     date.Date       `json:"date"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Kind implements Record.
func (LedgerAmount) Kind() Kind { return KindLedgerAmount }

// FXQuote is an externally supplied exchange rate: one unit of Base is worth
// Rate units of Quote.
type FXQuote struct {
	Base  string          `json:"base"`
	Quote string          `json:"quote"`
	Date  date.Date       `json:"date"`
	Rate  decimal.Decimal `json:"rate"`
}

// Kind implements Record.
func (FXQuote) Kind() Kind { return KindFXQuote }
