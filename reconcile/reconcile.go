// Package reconcile compares the ledger against the latest independent
// holding snapshot and emits the Adjustment transactions that close the gap.
//
// An adjustment is dated on the run day by default, never before
// transactions already in the ledger, so that FIFO replays stay ordered.
// Adjustments carry the source folio.SourceReconcile and an id derived from
// the asset and the date: running the engine twice on the same day creates
// each adjustment once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/fx"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store is the unit of work the engine reads the ledger from and writes
// adjustments to. *store.Tx implements it.
type Store interface {
	folio.AssetCatalog
	LedgerQuantities(ctx context.Context) (map[string]folio.Quantity, error)
	LatestSnapshot(ctx context.Context) ([]folio.PersistedHoldingRecord, date.Date, error)
	HasAdjustment(ctx context.Context, asset string, day date.Date) (bool, error)
	LastPriced(ctx context.Context, asset string) (folio.Transaction, bool, error)
	Insert(ctx context.Context, tx folio.Transaction) error
}

// Mode selects what a run does with the detected drift.
type Mode int

const (
	// DryRun reports the adjustments without writing them.
	DryRun Mode = iota
	// Verify writes nothing and fails on any drift.
	Verify
	// Execute inserts the adjustments.
	Execute
)

func (m Mode) String() string {
	switch m {
	case DryRun:
		return "dry-run"
	case Verify:
		return "verify"
	case Execute:
		return "execute"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// DatingPolicy selects the date of generated adjustments.
type DatingPolicy int

const (
	// DateToday dates adjustments on the run day.
	DateToday DatingPolicy = iota
	// DateSnapshot dates adjustments on the snapshot day. Point in time
	// queries between the snapshot and today then see the correction, but
	// transactions recorded after the snapshot are replayed before it.
	DateSnapshot
)

func (p DatingPolicy) String() string {
	if p == DateSnapshot {
		return "snapshot"
	}
	return "today"
}

// DefaultEpsilon is the gap under which quantities are considered equal.
var DefaultEpsilon = decimal.New(1, -6)

// Options configures an Engine. The zero value is a dry run in EUR, dated
// today, with DefaultEpsilon.
type Options struct {
	Mode     Mode
	Dating   DatingPolicy
	Epsilon  decimal.Decimal
	Currency string // ledger currency of the adjustments

	// ExcludeClasses are asset classes tracked outside of the ledger.
	ExcludeClasses []string
	// ExcludeAssets are asset ids tracked outside of the ledger.
	ExcludeAssets []string

	// Now returns the run day, date.Today when nil.
	Now func() date.Date
}

// Engine reconciles the ledger with the latest snapshot.
type Engine struct {
	rates fx.Provider
	opts  Options
	log   zerolog.Logger
}

// New returns an Engine converting implied prices with rates.
func New(rates fx.Provider, opts Options, log zerolog.Logger) *Engine {
	if !opts.Epsilon.IsPositive() {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.Currency == "" {
		opts.Currency = "EUR"
	}
	if opts.Now == nil {
		opts.Now = date.Today
	}
	return &Engine{
		rates: rates,
		opts:  opts,
		log:   log.With().Str("component", "reconcile").Logger(),
	}
}

// idSpace is the UUID namespace of adjustment ids.
var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/etnz/folio/reconcile"))

// AdjustmentID returns the id of the adjustment of asset dated day.
func AdjustmentID(asset string, day date.Date) string {
	return "RECON-" + uuid.NewSHA1(idSpace, []byte(asset+"|"+day.String())).String()
}

// Run reconciles every asset found in the snapshot or in the ledger.
//
// Per-asset failures are recorded in the Result and do not stop the run.
// The returned error is reserved to structural failures (the store cannot
// be read, no snapshot was ever recorded) and, in Verify mode, to detected
// drift, which wraps folio.ErrDrift.
func (e *Engine) Run(ctx context.Context, st Store) (res Result, err error) {
	start := time.Now()
	res = Result{Mode: e.opts.Mode, Date: e.opts.Now()}
	defer func() {
		ev := e.log.Info()
		if err != nil {
			ev = e.log.Error().Err(err)
		}
		ev.Str("mode", res.Mode.String()).
			Int("processed", res.Processed).
			Int("adjusted", res.Adjusted).
			Int("skipped", res.Skipped).
			Int("errored", res.Errored).
			Dur("elapsed", time.Since(start)).
			Msg("reconciliation finished")
	}()

	snapshot, snapDay, err := st.LatestSnapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("cannot read the latest snapshot: %w", err)
	}
	res.SnapshotDate = snapDay
	ledger, err := st.LedgerQuantities(ctx)
	if err != nil {
		return res, fmt.Errorf("cannot read ledger quantities: %w", err)
	}

	b := batch{st: st, day: res.Date, snapshot: snapDay}
	if e.opts.Dating == DateSnapshot {
		b.day = snapDay
	}

	records := make(map[string]folio.PersistedHoldingRecord, len(snapshot))
	for _, r := range snapshot {
		records[r.Asset] = r
	}
	assets := make([]string, 0, len(records)+len(ledger))
	for id := range records {
		assets = append(assets, id)
	}
	for id := range ledger {
		if _, ok := records[id]; !ok {
			assets = append(assets, id)
		}
	}
	slices.Sort(assets)

	for _, id := range assets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, inSnapshot := records[id]
		item := e.reconcile(ctx, b, id, rec, inSnapshot, ledger[id])
		res.add(item)
	}

	if e.opts.Mode == Verify && res.Drift() {
		return res, fmt.Errorf("%w: %d assets out of tolerance", folio.ErrDrift, res.Drifted())
	}
	return res, nil
}

// batch is the state shared by the assets of a run.
type batch struct {
	st       Store
	day      date.Date // date of the adjustments
	snapshot date.Date
}

// reconcile processes a single asset. Failures and panics are reported in
// the returned Item.
func (e *Engine) reconcile(ctx context.Context, b batch, id string, rec folio.PersistedHoldingRecord, inSnapshot bool, ledgerQty folio.Quantity) (item Item) {
	st, day := b.st, b.day
	item = Item{Asset: id, SnapshotQty: rec.Quantity, LedgerQty: ledgerQty}
	log := e.log.With().Str("asset", id).Logger()
	defer func() {
		if p := recover(); p != nil {
			item.Action = ActionFailed
			item.Err = fmt.Errorf("panic while reconciling %s: %v", id, p)
		}
		if item.Err != nil {
			log.Error().Err(item.Err).Msg("asset skipped")
		}
	}()

	excluded, err := e.excluded(ctx, st, id)
	if err != nil {
		item.Action, item.Err = ActionFailed, err
		return item
	}
	if excluded {
		item.Action = ActionExcluded
		return item
	}

	// absent from the snapshot: fully closed position.
	item.Gap = rec.Quantity.Sub(ledgerQty)
	if item.Gap.Abs().Decimal().LessThan(e.opts.Epsilon) {
		item.Action = ActionNone
		return item
	}

	done, err := st.HasAdjustment(ctx, id, day)
	if err != nil {
		item.Action, item.Err = ActionFailed, fmt.Errorf("cannot check existing adjustments: %w", err)
		return item
	}
	if done {
		log.Info().Stringer("date", day).Msg("already adjusted")
		item.Action = ActionGuarded
		return item
	}

	tx, err := e.adjustment(ctx, b, id, rec, inSnapshot, item.Gap)
	if err != nil {
		item.Action, item.Err = ActionFailed, err
		return item
	}
	item.Action = ActionAdjust
	item.Transaction = &tx

	if e.opts.Mode != Execute {
		log.Info().Str("type", string(tx.Type)).Stringer("quantity", tx.Quantity).Stringer("amount", tx.Amount).Msg("adjustment proposed")
		return item
	}
	switch err := st.Insert(ctx, tx); {
	case errors.Is(err, folio.ErrDuplicateID):
		item.Action, item.Transaction = ActionGuarded, nil
	case err != nil:
		item.Action, item.Err = ActionFailed, fmt.Errorf("cannot record adjustment: %w", err)
	default:
		log.Info().Str("id", tx.ID).Str("type", string(tx.Type)).Stringer("quantity", tx.Quantity).Stringer("amount", tx.Amount).Msg("adjustment recorded")
	}
	return item
}

// excluded reports whether asset is tracked outside of the ledger.
func (e *Engine) excluded(ctx context.Context, st Store, id string) (bool, error) {
	if slices.Contains(e.opts.ExcludeAssets, id) {
		return true, nil
	}
	if len(e.opts.ExcludeClasses) == 0 {
		return false, nil
	}
	a, _, err := st.Asset(ctx, id)
	if err != nil {
		return false, fmt.Errorf("cannot read asset metadata: %w", err)
	}
	return slices.Contains(e.opts.ExcludeClasses, a.Class), nil
}

// adjustment builds the transaction closing gap.
func (e *Engine) adjustment(ctx context.Context, b batch, id string, rec folio.PersistedHoldingRecord, inSnapshot bool, gap folio.Quantity) (folio.Transaction, error) {
	price, cur, source, err := e.impliedPrice(ctx, b.st, id, rec, inSnapshot)
	if err != nil {
		return folio.Transaction{}, err
	}
	memo := fmt.Sprintf("snapshot %s, price from %s", b.snapshot, source)
	if price.IsZero() {
		memo = fmt.Sprintf("snapshot %s, no implied price", b.snapshot)
	}
	if cur != e.opts.Currency && !price.IsZero() {
		rate, err := e.rates.Rate(ctx, cur, e.opts.Currency, b.day)
		if err != nil {
			return folio.Transaction{}, fmt.Errorf("cannot convert %s to %s: %w", cur, e.opts.Currency, err)
		}
		memo = fmt.Sprintf("%s, %s %s at %s", memo, price, cur, rate)
		price = price.Mul(rate)
	}

	typ := folio.AdjustmentBuy
	if gap.IsNegative() {
		typ = folio.AdjustmentSell
	}
	tx := folio.Transaction{
		ID:        AdjustmentID(id, b.day),
		Date:      b.day,
		Asset:     id,
		Type:      typ,
		Quantity:  gap,
		Price:     price,
		Amount:    gap.Decimal().Mul(price).Neg(),
		Currency:  e.opts.Currency,
		Source:    folio.SourceReconcile,
		CreatedBy: "folio reconcile",
		Memo:      memo,
	}
	return tx, tx.Validate()
}

// impliedPrice returns the unit price of asset and its currency: the
// snapshot market value divided by the snapshot quantity, or else the price
// of the last priced transaction. A zero price is returned when neither is
// known.
func (e *Engine) impliedPrice(ctx context.Context, st Store, id string, rec folio.PersistedHoldingRecord, inSnapshot bool) (decimal.Decimal, string, string, error) {
	if inSnapshot {
		if p, ok := rec.ImpliedPrice(); ok {
			return p, e.currency(rec.Currency), "snapshot", nil
		}
	}
	last, ok, err := st.LastPriced(ctx, id)
	if err != nil {
		return decimal.Zero, "", "", fmt.Errorf("cannot read the last transaction price: %w", err)
	}
	if !ok {
		e.log.Warn().Str("asset", id).Msg("no implied price, adjustment recorded at zero")
		return decimal.Zero, e.opts.Currency, "", nil
	}
	return last.Price, e.currency(last.Currency), "transaction " + last.ID, nil
}

func (e *Engine) currency(c string) string {
	if c == "" {
		return e.opts.Currency
	}
	return c
}
