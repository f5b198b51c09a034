package folio

import (
	"errors"
	"fmt"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// TxType is the kind of a ledger entry.
type TxType string

// Transaction types recorded in the ledger.
const (
	Buy              TxType = "Buy"
	Sell             TxType = "Sell"
	RSUVest          TxType = "RSU_Vest"
	DividendReinvest TxType = "Dividend_Reinvest"
	DividendCash     TxType = "Dividend_Cash"
	TransferIn       TxType = "Transfer_In"
	TransferOut      TxType = "Transfer_Out"
	AdjustmentBuy    TxType = "Adjustment_Buy"
	AdjustmentSell   TxType = "Adjustment_Sell"
)

// TxTypes lists all the known transaction types.
var TxTypes = []TxType{Buy, Sell, RSUVest, DividendReinvest, DividendCash, TransferIn, TransferOut, AdjustmentBuy, AdjustmentSell}

// ParseTxType parses a canonical transaction type name.
func ParseTxType(s string) (TxType, error) {
	for _, t := range TxTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown transaction type: %q", s)
}

// IsAcquisition reports whether t adds units to a position.
func (t TxType) IsAcquisition() bool {
	switch t {
	case Buy, RSUVest, DividendReinvest, TransferIn, AdjustmentBuy:
		return true
	}
	return false
}

// IsDisposal reports whether t removes units from a position.
func (t TxType) IsDisposal() bool {
	switch t {
	case Sell, TransferOut, AdjustmentSell:
		return true
	}
	return false
}

// IsCashOnly reports whether t moves cash without touching the position.
func (t TxType) IsCashOnly() bool { return t == DividendCash }

// IsAdjustment reports whether t was generated by reconciliation.
func (t TxType) IsAdjustment() bool { return t == AdjustmentBuy || t == AdjustmentSell }

// Source tags identify where a transaction comes from.
const (
	SourceImport    = "import"
	SourceReconcile = "reconcile"
)

// Transaction is an immutable ledger entry.
//
// Quantity is signed: acquisitions are positive and disposals negative.
// Amount is the net cash flow in Currency: negative for an outflow (a buy)
// and positive for an inflow (a sell). FXRate converts Currency into the
// ledger valuation currency, zero means "same currency".
type Transaction struct {
	ID        string          `json:"id"`
	Date      date.Date       `json:"date"`
	Asset     string          `json:"asset"`
	Type      TxType          `json:"type"`
	Quantity  Quantity        `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	FXRate    decimal.Decimal `json:"fxRate,omitzero"`
	Source    string          `json:"source,omitempty"`
	CreatedBy string          `json:"createdBy,omitempty"`
	Memo      string          `json:"memo,omitempty"`
}

// Kind implements Record.
func (Transaction) Kind() Kind { return KindTransaction }

// Rate returns the effective fx rate of the transaction.
func (t Transaction) Rate() decimal.Decimal {
	if t.FXRate.IsPositive() {
		return t.FXRate
	}
	return decimal.NewFromInt(1)
}

// Validate checks a transaction for correctness.
func (t Transaction) Validate() error {
	var errs error
	if t.ID == "" {
		errs = errors.Join(errs, errors.New("missing business id"))
	}
	if t.Asset == "" {
		errs = errors.Join(errs, errors.New("missing asset"))
	}
	if t.Date.IsZero() {
		errs = errors.Join(errs, errors.New("missing date"))
	}
	if _, err := ParseTxType(string(t.Type)); err != nil {
		errs = errors.Join(errs, err)
	}
	if t.Currency != "" {
		if err := ValidateCurrency(t.Currency); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if t.FXRate.IsNegative() {
		errs = errors.Join(errs, fmt.Errorf("negative fx rate %s", t.FXRate))
	}
	switch {
	case t.Type.IsAcquisition() && t.Quantity.IsNegative():
		errs = errors.Join(errs, fmt.Errorf("%s with negative quantity %s", t.Type, t.Quantity))
	case t.Type.IsDisposal() && t.Quantity.IsPositive():
		errs = errors.Join(errs, fmt.Errorf("%s with positive quantity %s", t.Type, t.Quantity))
	}
	if errs != nil {
		return fmt.Errorf("invalid %s transaction %q on %v: %w", t.Type, t.ID, t.Date, errs)
	}
	return nil
}
