package folio

import (
	"errors"
	"fmt"

	"github.com/etnz/folio/date"
)

var (
	// ErrDuplicateID is returned when a transaction business id is already
	// recorded. It is a data integrity error: the entry is skipped.
	ErrDuplicateID = errors.New("duplicate transaction id")

	// ErrValuationUnavailable is reported when no price source could value
	// an asset. Callers fall back to a cost-basis derived price.
	ErrValuationUnavailable = errors.New("valuation unavailable")

	// ErrOversell is wrapped by OversellError.
	ErrOversell = errors.New("oversell")

	// ErrDrift is returned in verify mode when the ledger disagrees with the
	// latest snapshot.
	ErrDrift = errors.New("reconciliation drift")

	// ErrExternalSource wraps failures of external price or rate sources.
	ErrExternalSource = errors.New("external source failure")

	// ErrNoSnapshot is returned when no independent snapshot was ever recorded.
	ErrNoSnapshot = errors.New("no holding snapshot recorded")
)

// OversellError describes a disposal exceeding the tracked inventory.
type OversellError struct {
	Asset   string
	Date    date.Date
	TxID    string
	Missing Quantity // quantity that could not be matched to any lot
}

func (e *OversellError) Error() string {
	return fmt.Sprintf("%v: %s disposal %q exceeds inventory by %s", e.Date, e.Asset, e.TxID, e.Missing)
}

func (e *OversellError) Unwrap() error { return ErrOversell }
