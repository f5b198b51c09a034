package folio

import (
	"slices"

	"github.com/etnz/folio/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// lot represents a single acquisition of an asset, used for cost basis calculations.
type lot struct {
	Date     date.Date
	Quantity Quantity
	Cost     decimal.Decimal // Total cost of the lot in valuation currency.
}

// unitCost returns the cost of one unit of the lot.
func (l lot) unitCost() decimal.Decimal {
	if l.Quantity.IsZero() {
		return decimal.Zero
	}
	return l.Cost.Div(l.Quantity.value)
}

// lots is a FIFO queue, the front is the oldest acquisition.
type lots []lot

// consume removes up to quantity units from the front of the queue. It
// returns the remaining queue and the quantity that could not be matched.
func (l lots) consume(quantity Quantity) (lots, Quantity) {
	for len(l) > 0 && quantity.IsPositive() {
		head := l[0]
		if head.Quantity.GreaterThan(quantity) {
			// Partial sale from this lot
			soldCost := head.Cost.Mul(quantity.value).Div(head.Quantity.value)
			l[0] = lot{
				Date:     head.Date,
				Quantity: head.Quantity.Sub(quantity),
				Cost:     head.Cost.Sub(soldCost),
			}
			return l, Quantity{}
		}
		// Full sale of this lot
		quantity = quantity.Sub(head.Quantity)
		l = l[1:]
	}
	return l, quantity
}

// Position is the outcome of a FIFO replay.
type Position struct {
	Asset     string
	Quantity  Quantity        // sum of remaining lot quantities, never negative
	CostBasis decimal.Decimal // sum of remaining lot costs in valuation currency
	Oversells []*OversellError
	lots      lots
}

// Clean reports whether every disposal was matched by tracked inventory.
func (p Position) Clean() bool { return len(p.Oversells) == 0 }

// AverageCost returns the cost basis per unit, zero for an empty position.
func (p Position) AverageCost() decimal.Decimal {
	if !p.Quantity.IsPositive() {
		return decimal.Zero
	}
	return p.CostBasis.Div(p.Quantity.value)
}

// Lots returns the number of open lots.
func (p Position) Lots() int { return len(p.lots) }

// LotTracker replays an asset history into a position using FIFO lot
// consumption. It holds no state between replays.
type LotTracker struct {
	log zerolog.Logger
}

// NewLotTracker returns a LotTracker logging oversells on log.
func NewLotTracker(log zerolog.Logger) *LotTracker {
	return &LotTracker{log: log.With().Str("component", "lots").Logger()}
}

// rank orders same-day transactions: acquisitions first so that a vest and
// a sale on the same day are matched.
func rank(t TxType) int {
	switch {
	case t.IsAcquisition():
		return 0
	case t.IsDisposal():
		return 1
	default:
		return 2
	}
}

// Replay computes the position of asset on day upTo from its transactions.
// Transactions dated after upTo are ignored, a zero upTo means no limit.
// txs is not modified.
func (t *LotTracker) Replay(asset string, txs []Transaction, upTo date.Date) Position {
	history := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if !upTo.IsZero() && tx.Date.After(upTo) {
			continue
		}
		history = append(history, tx)
	}
	slices.SortStableFunc(history, func(a, b Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return rank(a.Type) - rank(b.Type)
	})

	pos := Position{Asset: asset}
	var queue lots
	for _, tx := range history {
		switch {
		case tx.Type.IsAcquisition():
			quantity := tx.Quantity.Abs()
			if quantity.IsZero() {
				t.log.Warn().Str("asset", asset).Str("tx", tx.ID).Stringer("date", tx.Date).Msg("acquisition with zero quantity ignored")
				continue
			}
			cost := tx.Amount.Abs()
			if cost.IsZero() {
				// vests are sometimes recorded with a unit price only.
				cost = tx.Price.Abs().Mul(quantity.value)
			}
			queue = append(queue, lot{Date: tx.Date, Quantity: quantity, Cost: cost.Mul(tx.Rate())})

		case tx.Type.IsDisposal():
			var missing Quantity
			queue, missing = queue.consume(tx.Quantity.Abs())
			if missing.IsPositive() {
				oversell := &OversellError{Asset: asset, Date: tx.Date, TxID: tx.ID, Missing: missing}
				pos.Oversells = append(pos.Oversells, oversell)
				t.log.Warn().Err(oversell).Str("asset", asset).Str("tx", tx.ID).Stringer("missing", missing).Msg("oversell clamped at zero")
			}
		}
		// cash-only entries do not change the position.
	}

	pos.lots = queue
	for _, l := range queue {
		pos.Quantity = pos.Quantity.Add(l.Quantity)
		pos.CostBasis = pos.CostBasis.Add(l.Cost)
	}
	return pos
}

// NetQuantity returns the unconstrained signed sum of the transaction
// quantities, as opposed to the FIFO-limited Position quantity.
func NetQuantity(txs []Transaction) Quantity {
	var q Quantity
	for _, tx := range txs {
		if tx.Type.IsCashOnly() {
			continue
		}
		q = q.Add(tx.Quantity)
	}
	return q
}
