package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Tx is a unit of work on the database.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the unit of work.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the unit of work.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

const txColumns = `id, date, asset, type, quantity, price, amount, currency, fx_rate, source, created_by, memo`

// Insert records a transaction. A transaction whose id is already recorded
// is rejected with folio.ErrDuplicateID.
func (t *Tx) Insert(ctx context.Context, x folio.Transaction) error {
	if err := x.Validate(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		x.ID, x.Date, x.Asset, string(x.Type), x.Quantity, x.Price, x.Amount, x.Currency, x.FXRate, x.Source, x.CreatedBy, x.Memo)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %q: %w", x.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", folio.ErrDuplicateID, x.ID)
	}
	return nil
}

// Load records any importable record. Transactions are inserted (see
// Insert), reference and market data are upserted.
func (t *Tx) Load(ctx context.Context, rec folio.Record) error {
	var err error
	switch r := rec.(type) {
	case folio.Transaction:
		return t.Insert(ctx, r)
	case folio.Asset:
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO assets (id, name, type, class, subclass, currency) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name, type=excluded.type, class=excluded.class, subclass=excluded.subclass, currency=excluded.currency`,
			r.ID, r.Name, r.Type, r.Class, r.Subclass, r.Currency)
	case folio.PersistedHoldingRecord:
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO holding_snapshots (snapshot_date, asset, quantity, market_value, currency) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(snapshot_date, asset) DO UPDATE SET quantity=excluded.quantity, market_value=excluded.market_value, currency=excluded.currency`,
			r.SnapshotDate, r.Asset, r.Quantity, r.MarketValue, r.Currency)
	case folio.PricePoint:
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO prices (asset, date, price, source) VALUES (?, ?, ?, ?)
			ON CONFLICT(asset, date) DO UPDATE SET price=excluded.price, source=excluded.source`,
			r.Asset, r.Date, r.Price, r.Source)
	case folio.LedgerAmount:
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO external_ledger (line, date, amount, currency) VALUES (?, ?, ?, ?)
			ON CONFLICT(line, date) DO UPDATE SET amount=excluded.amount, currency=excluded.currency`,
			r.Line, r.Date, r.Amount, r.Currency)
	case folio.FXQuote:
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO fx_rates (base, quote, date, rate) VALUES (?, ?, ?, ?)
			ON CONFLICT(base, quote, date) DO UPDATE SET rate=excluded.rate`,
			r.Base, r.Quote, r.Date, r.Rate)
	default:
		return fmt.Errorf("unsupported record %T", rec)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s record: %w", rec.Kind(), err)
	}
	return nil
}

// SetOverride forces the price of asset from day on.
func (t *Tx) SetOverride(ctx context.Context, asset string, day date.Date, price decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO price_overrides (asset, date, price) VALUES (?, ?, ?)
		ON CONFLICT(asset, date) DO UPDATE SET price=excluded.price`,
		asset, day, price)
	return err
}

// DeleteBySource deletes every transaction tagged with source and returns
// the number of deleted entries.
func (t *Tx) DeleteBySource(ctx context.Context, source string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE source = ?`, source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanTransactions(rows *sql.Rows) ([]folio.Transaction, error) {
	defer rows.Close()
	var txs []folio.Transaction
	for rows.Next() {
		var x folio.Transaction
		var typ string
		if err := rows.Scan(&x.ID, &x.Date, &x.Asset, &typ, &x.Quantity, &x.Price, &x.Amount, &x.Currency, &x.FXRate, &x.Source, &x.CreatedBy, &x.Memo); err != nil {
			return nil, err
		}
		x.Type = folio.TxType(typ)
		txs = append(txs, x)
	}
	return txs, rows.Err()
}

// Transactions returns the transactions of asset dated on or before upTo
// (no limit if zero), in ascending date then insertion order.
func (t *Tx) Transactions(ctx context.Context, asset string, upTo date.Date) ([]folio.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions WHERE asset = ?`
	args := []any{asset}
	if !upTo.IsZero() {
		q += ` AND date <= ?`
		args = append(args, upTo)
	}
	rows, err := t.tx.QueryContext(ctx, q+` ORDER BY date, rowid`, args...)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// AssetIDs returns the sorted ids of the assets having transactions dated on
// or before upTo (no limit if zero).
func (t *Tx) AssetIDs(ctx context.Context, upTo date.Date) ([]string, error) {
	q := `SELECT DISTINCT asset FROM transactions`
	var args []any
	if !upTo.IsZero() {
		q += ` WHERE date <= ?`
		args = append(args, upTo)
	}
	rows, err := t.tx.QueryContext(ctx, q+` ORDER BY asset`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LedgerQuantities returns, for every asset, the unconstrained signed sum of
// its transaction quantities.
func (t *Tx) LedgerQuantities(ctx context.Context) (map[string]folio.Quantity, error) {
	// quantities are TEXT: summed in decimal, not by SQLite.
	rows, err := t.tx.QueryContext(ctx, `SELECT asset, type, quantity FROM transactions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sums := make(map[string]folio.Quantity)
	for rows.Next() {
		var (
			asset, typ string
			q          folio.Quantity
		)
		if err := rows.Scan(&asset, &typ, &q); err != nil {
			return nil, err
		}
		if folio.TxType(typ).IsCashOnly() {
			continue
		}
		sums[asset] = sums[asset].Add(q)
	}
	return sums, rows.Err()
}

// HasAdjustment reports whether a reconciliation adjustment of asset dated
// day is already recorded.
func (t *Tx) HasAdjustment(ctx context.Context, asset string, day date.Date) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE asset = ? AND date = ? AND type IN (?, ?)`,
		asset, day, string(folio.AdjustmentBuy), string(folio.AdjustmentSell)).Scan(&n)
	return n > 0, err
}

// LastPriced returns the most recent transaction of asset carrying a
// positive unit price.
func (t *Tx) LastPriced(ctx context.Context, asset string) (folio.Transaction, bool, error) {
	// price is TEXT: positivity is checked in decimal.
	txs, err := t.Transactions(ctx, asset, date.Date{})
	if err != nil {
		return folio.Transaction{}, false, err
	}
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Price.IsPositive() {
			return txs[i], true, nil
		}
	}
	return folio.Transaction{}, false, nil
}

func scanRecords(rows *sql.Rows) ([]folio.PersistedHoldingRecord, error) {
	defer rows.Close()
	var recs []folio.PersistedHoldingRecord
	for rows.Next() {
		var r folio.PersistedHoldingRecord
		if err := rows.Scan(&r.SnapshotDate, &r.Asset, &r.Quantity, &r.MarketValue, &r.Currency); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// LatestSnapshot returns the records of the most recent snapshot, sorted by
// asset. It returns folio.ErrNoSnapshot when no snapshot was ever recorded.
func (t *Tx) LatestSnapshot(ctx context.Context) ([]folio.PersistedHoldingRecord, date.Date, error) {
	var latest sql.NullString
	if err := t.tx.QueryRowContext(ctx, `SELECT MAX(snapshot_date) FROM holding_snapshots`).Scan(&latest); err != nil {
		return nil, date.Date{}, err
	}
	if !latest.Valid {
		return nil, date.Date{}, folio.ErrNoSnapshot
	}
	day, err := date.Parse(latest.String)
	if err != nil {
		return nil, date.Date{}, err
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT snapshot_date, asset, quantity, market_value, currency FROM holding_snapshots WHERE snapshot_date = ? ORDER BY asset`, day)
	if err != nil {
		return nil, day, err
	}
	recs, err := scanRecords(rows)
	return recs, day, err
}

// LatestRecord returns the last snapshot record of asset dated on or before
// day.
func (t *Tx) LatestRecord(ctx context.Context, asset string, day date.Date) (folio.PersistedHoldingRecord, bool, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT snapshot_date, asset, quantity, market_value, currency FROM holding_snapshots
		WHERE asset = ? AND snapshot_date <= ? ORDER BY snapshot_date DESC LIMIT 1`, asset, day)
	if err != nil {
		return folio.PersistedHoldingRecord{}, false, err
	}
	recs, err := scanRecords(rows)
	if err != nil || len(recs) == 0 {
		return folio.PersistedHoldingRecord{}, false, err
	}
	return recs[0], true, nil
}

// LatestPrice returns the last price/NAV of asset recorded on or before day.
func (t *Tx) LatestPrice(ctx context.Context, asset string, day date.Date) (folio.PricePoint, bool, error) {
	p := folio.PricePoint{Asset: asset}
	err := t.tx.QueryRowContext(ctx,
		`SELECT date, price, source FROM prices WHERE asset = ? AND date <= ? ORDER BY date DESC LIMIT 1`,
		asset, day).Scan(&p.Date, &p.Price, &p.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	return p, err == nil, err
}

// Override returns the price override of asset in force on day.
func (t *Tx) Override(ctx context.Context, asset string, day date.Date) (decimal.Decimal, bool, error) {
	var p decimal.Decimal
	err := t.tx.QueryRowContext(ctx,
		`SELECT price FROM price_overrides WHERE asset = ? AND date <= ? ORDER BY date DESC LIMIT 1`,
		asset, day).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	return p, err == nil, err
}

// ExternalAmount returns the last amount of an external ledger line
// recorded on or before day.
func (t *Tx) ExternalAmount(ctx context.Context, line string, day date.Date) (folio.LedgerAmount, bool, error) {
	a := folio.LedgerAmount{Line: line}
	err := t.tx.QueryRowContext(ctx,
		`SELECT date, amount, currency FROM external_ledger WHERE line = ? AND date <= ? ORDER BY date DESC LIMIT 1`,
		line, day).Scan(&a.Date, &a.Amount, &a.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return a, false, nil
	}
	return a, err == nil, err
}

// LatestFXRate returns the last base/quote rate recorded on or before day.
func (t *Tx) LatestFXRate(ctx context.Context, base, quote string, day date.Date) (decimal.Decimal, bool, error) {
	var r decimal.Decimal
	err := t.tx.QueryRowContext(ctx,
		`SELECT rate FROM fx_rates WHERE base = ? AND quote = ? AND date <= ? ORDER BY date DESC LIMIT 1`,
		base, quote, day).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	return r, err == nil, err
}

// Asset implements folio.AssetCatalog.
func (t *Tx) Asset(ctx context.Context, id string) (folio.Asset, bool, error) {
	a := folio.Asset{ID: id}
	err := t.tx.QueryRowContext(ctx,
		`SELECT name, type, class, subclass, currency FROM assets WHERE id = ?`, id).
		Scan(&a.Name, &a.Type, &a.Class, &a.Subclass, &a.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return a, false, nil
	}
	return a, err == nil, err
}

// Assets returns every known asset sorted by id.
func (t *Tx) Assets(ctx context.Context) ([]folio.Asset, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, type, class, subclass, currency FROM assets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assets []folio.Asset
	for rows.Next() {
		var a folio.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Class, &a.Subclass, &a.Currency); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, rows.Err()
}
