package reconcile

import (
	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
)

// Action is what a run did for one asset.
type Action int

const (
	// ActionNone means the ledger matches the snapshot.
	ActionNone Action = iota
	// ActionAdjust means an adjustment was proposed, or recorded in Execute
	// mode.
	ActionAdjust
	// ActionGuarded means an adjustment of the asset already exists for the
	// day.
	ActionGuarded
	// ActionExcluded means the asset is tracked outside of the ledger.
	ActionExcluded
	// ActionFailed means the asset could not be reconciled, see Item.Err.
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionAdjust:
		return "adjust"
	case ActionGuarded:
		return "already adjusted"
	case ActionExcluded:
		return "excluded"
	case ActionFailed:
		return "failed"
	}
	return "unknown"
}

// Item is the outcome of the reconciliation of one asset.
type Item struct {
	Asset       string
	SnapshotQty folio.Quantity
	LedgerQty   folio.Quantity
	Gap         folio.Quantity // SnapshotQty - LedgerQty
	Action      Action
	Transaction *folio.Transaction // set for ActionAdjust
	Err         error              // set for ActionFailed
}

// Result is the outcome of a run.
type Result struct {
	Mode         Mode
	Date         date.Date
	SnapshotDate date.Date
	Items        []Item

	Processed int
	Adjusted  int
	Skipped   int
	Errored   int
}

func (r *Result) add(it Item) {
	r.Items = append(r.Items, it)
	r.Processed++
	switch it.Action {
	case ActionAdjust:
		r.Adjusted++
	case ActionGuarded, ActionExcluded:
		r.Skipped++
	case ActionFailed:
		r.Errored++
	}
}

// Drifted returns the number of assets whose ledger quantity is out of
// tolerance: proposed or recorded adjustments, assets already adjusted for
// the day whose gap remains, and failed assets with a known gap.
func (r Result) Drifted() int {
	n := 0
	for _, it := range r.Items {
		switch it.Action {
		case ActionAdjust, ActionGuarded:
			n++
		case ActionFailed:
			if !it.Gap.IsZero() {
				n++
			}
		}
	}
	return n
}

// Drift reports whether any asset is out of tolerance.
func (r Result) Drift() bool { return r.Drifted() > 0 }

// Verified reports whether every asset was checked and none drifted.
func (r Result) Verified() bool { return r.Errored == 0 && !r.Drift() }

// Adjustments returns the adjustment transactions of the run.
func (r Result) Adjustments() []folio.Transaction {
	var txs []folio.Transaction
	for _, it := range r.Items {
		if it.Transaction != nil {
			txs = append(txs, *it.Transaction)
		}
	}
	return txs
}
