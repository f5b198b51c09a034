// Package folio provides the core types of a personal investment ledger and
// the FIFO lot tracker that turns an asset history into a position.
//
// The ledger is a list of immutable transactions, each identified by a
// unique business id. Positions, valuations and reconciliation corrections
// are all derived from it:
//   - LotTracker replays an asset history, consuming lots in acquisition
//     order, to compute the net quantity and its cost basis.
//   - package price resolves unit prices through a ranked chain of sources.
//   - package holdings values the whole portfolio on a given day.
//   - package reconcile compares the ledger with an independently captured
//     snapshot and emits correcting adjustments.
//
// All arithmetic is decimal (github.com/shopspring/decimal), never floating
// point, so that cost basis does not drift over thousands of entries.
package folio
