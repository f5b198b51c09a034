package renderer

import (
	"errors"
	"strings"
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// document is the parsed structure of a markdown report.
type document struct {
	headings []string
	tables   [][][]string // table, row, cell; the header is the first row
	text     string
}

// parse parses a markdown report with the GFM table extension.
func parse(t *testing.T, md string) document {
	t.Helper()
	src := []byte(md)
	root := goldmark.New(goldmark.WithExtensions(extension.Table)).Parser().Parse(text.NewReader(src))

	doc := document{text: md}
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			doc.headings = append(doc.headings, content(n, src))
			return ast.WalkSkipChildren, nil
		case *extast.Table:
			var table [][]string
			for row := n.FirstChild(); row != nil; row = row.NextSibling() {
				var cells []string
				for c := row.FirstChild(); c != nil; c = c.NextSibling() {
					cells = append(cells, content(c, src))
				}
				table = append(table, cells)
			}
			doc.tables = append(doc.tables, table)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	return doc
}

// content returns the text of n and its descendants.
func content(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			b.Write(t.Segment.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

var day = date.New(2025, 6, 30)

func TestRenderHoldings(t *testing.T) {
	rows := []folio.HoldingSnapshot{
		{
			Asset: "AAPL.US", Name: "Apple", Quantity: folio.Q(10),
			CostBasis: d("1000"), Price: d("150"), PriceSource: "quote", MarketValue: d("1500"),
			UnrealizedPnL: d("500"), PnLPercent: d("50"), Currency: "USD", Weight: d("0.6"),
		},
		{
			Asset: "FUND9", Quantity: folio.Q(4),
			CostBasis: d("100"), Price: d("25"), PriceSource: "cost_basis", MarketValue: d("100"),
			Currency: "USD", Weight: d("0.04"),
		},
		{
			Asset: "HOUSE", Name: "Flat", Quantity: folio.Q(1),
			CostBasis: d("900"), Price: d("900"), PriceSource: "external_ledger", MarketValue: d("900"),
			Currency: "USD", Weight: d("0.36"), Manual: true,
		},
	}
	h := NewHoldings(day, "USD", rows, "cost_basis")
	assert.True(t, h.Total.Equal(folio.M(2500, "USD")))
	assert.True(t, h.PnL.Equal(folio.M(500, "USD")))
	assert.Equal(t, 1, h.AtCostBasis)

	doc := parse(t, RenderHoldings(h))
	assert.Equal(t, []string{"Holdings on 2025-06-30", "Positions", "Manually Tracked"}, doc.headings)
	assert.Contains(t, doc.text, "$2,500.00")
	assert.Contains(t, doc.text, "1 position(s) valued at cost basis")

	require.Len(t, doc.tables, 2)
	positions := doc.tables[0]
	require.Len(t, positions, 3)
	assert.Equal(t, []string{"Asset", "Quantity", "Price", "Source", "Market Value", "Unrealized", "Return", "Weight"}, positions[0])
	assert.Equal(t, []string{"AAPL.US Apple", "10", "$150.00", "quote", "$1,500.00", "+$500.00", "50.00%", "60.00%"}, positions[1])
	assert.Equal(t, "cost_basis", positions[2][3])
	assert.Equal(t, "-", positions[2][5])

	manual := doc.tables[1]
	require.Len(t, manual, 2)
	assert.Equal(t, "HOUSE Flat", manual[1][0])
	assert.Equal(t, "36.00%", manual[1][7])
}

func TestRenderHoldings_Empty(t *testing.T) {
	doc := parse(t, RenderHoldings(NewHoldings(day, "USD", nil, "cost_basis")))
	assert.Equal(t, []string{"Holdings on 2025-06-30"}, doc.headings)
	assert.Empty(t, doc.tables)
	assert.Contains(t, doc.text, "$0.00")
}

func TestRenderReconciliation(t *testing.T) {
	adj := folio.Transaction{
		ID: "RECON-1", Date: day, Asset: "X", Type: folio.AdjustmentBuy,
		Quantity: folio.Q(100), Price: d("25"), Amount: d("-2500"), Currency: "USD",
	}
	res := reconcile.Result{
		Mode: reconcile.Execute, Date: date.New(2025, 7, 1), SnapshotDate: day,
		Items: []reconcile.Item{
			{Asset: "X", SnapshotQty: folio.Q(1000), LedgerQty: folio.Q(900), Gap: folio.Q(100), Action: reconcile.ActionAdjust, Transaction: &adj},
			{Asset: "Y", SnapshotQty: folio.Q(5), LedgerQty: folio.Q(5), Action: reconcile.ActionNone},
			{Asset: "Z", Gap: folio.Q(-3), Action: reconcile.ActionGuarded},
			{Asset: "HOUSE", Action: reconcile.ActionExcluded},
			{Asset: "W", Gap: folio.Q(2), Action: reconcile.ActionFailed, Err: errors.New("no rate | offline")},
		},
		Processed: 5, Adjusted: 1, Skipped: 2, Errored: 1,
	}

	r := NewReconciliation(res)
	assert.Equal(t, 1, r.Guarded)
	assert.Equal(t, 1, r.Excluded)

	doc := parse(t, RenderReconciliation(r))
	assert.Equal(t, []string{"Reconciliation on 2025-07-01 (execute)", "Adjustments", "Skipped", "Errors"}, doc.headings)
	assert.Contains(t, doc.text, "5 assets, 1 adjusted, 1 already adjusted, 1 excluded, 1 errors")

	require.Len(t, doc.tables, 3)
	assert.Equal(t, []string{"X", "1000", "900", "Adjustment_Buy", "100", "$25.00", "-$2,500.00", "RECON-1"}, doc.tables[0][1])
	assert.Equal(t, []string{"Z", "-3", "already adjusted"}, doc.tables[1][1])
	require.Len(t, doc.tables[2], 2)
	assert.Equal(t, "W", doc.tables[2][1][0])
	assert.Len(t, doc.tables[2][1], 3, "pipes in errors are escaped")
}

func TestRenderReconciliation_Clean(t *testing.T) {
	res := reconcile.Result{Mode: reconcile.Verify, Date: day, SnapshotDate: day, Processed: 1,
		Items: []reconcile.Item{{Asset: "Y", Action: reconcile.ActionNone}}}
	doc := parse(t, RenderReconciliation(NewReconciliation(res)))
	assert.Equal(t, []string{"Reconciliation on 2025-06-30 (verify)"}, doc.headings)
	assert.Empty(t, doc.tables)
	assert.Contains(t, doc.text, "No adjustment.")
}
