package renderer

import (
	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/reconcile"
)

// Reconciliation is the data of a reconciliation report.
type Reconciliation struct {
	Mode         string
	Date         date.Date
	SnapshotDate date.Date
	Adjustments  []AdjustmentRow
	Skipped      []ReconcileRow
	Errors       []ReconcileRow

	Processed, Adjusted, Guarded, Excluded, Errored int
}

// AdjustmentRow is an adjustment proposed or recorded by a run.
type AdjustmentRow struct {
	Asset       string
	SnapshotQty folio.Quantity
	LedgerQty   folio.Quantity
	Type        string
	Quantity    folio.Quantity
	Price       folio.Money
	Amount      folio.Money
	ID          string
}

// ReconcileRow is an asset that was not adjusted.
type ReconcileRow struct {
	Asset  string
	Gap    folio.Quantity
	Reason string
}

// NewReconciliation builds the report data of a run.
func NewReconciliation(res reconcile.Result) *Reconciliation {
	r := &Reconciliation{
		Mode:         res.Mode.String(),
		Date:         res.Date,
		SnapshotDate: res.SnapshotDate,
		Processed:    res.Processed,
		Adjusted:     res.Adjusted,
		Errored:      res.Errored,
	}
	for _, it := range res.Items {
		switch it.Action {
		case reconcile.ActionAdjust:
			tx := it.Transaction
			r.Adjustments = append(r.Adjustments, AdjustmentRow{
				Asset:       cell(it.Asset),
				SnapshotQty: it.SnapshotQty,
				LedgerQty:   it.LedgerQty,
				Type:        string(tx.Type),
				Quantity:    tx.Quantity,
				Price:       folio.M(tx.Price, tx.Currency),
				Amount:      folio.M(tx.Amount, tx.Currency),
				ID:          tx.ID,
			})
		case reconcile.ActionGuarded:
			r.Guarded++
			r.Skipped = append(r.Skipped, ReconcileRow{Asset: cell(it.Asset), Gap: it.Gap, Reason: it.Action.String()})
		case reconcile.ActionExcluded:
			r.Excluded++
		case reconcile.ActionFailed:
			r.Errors = append(r.Errors, ReconcileRow{Asset: cell(it.Asset), Gap: it.Gap, Reason: cell(it.Err.Error())})
		}
	}
	return r
}

const reconciliationTemplate = `# Reconciliation on {{ .Date }} ({{ .Mode }})

Snapshot of {{ .SnapshotDate }}: {{ .Processed }} assets, {{ .Adjusted }} adjusted, {{ .Guarded }} already adjusted, {{ .Excluded }} excluded, {{ .Errored }} errors.
{{- if .Adjustments }}

## Adjustments

| Asset | Snapshot | Ledger | Type | Quantity | Price | Amount | ID |
|:---|---:|---:|:---|---:|---:|---:|:---|
{{- range .Adjustments }}
| {{ .Asset }} | {{ .SnapshotQty }} | {{ .LedgerQty }} | {{ .Type }} | {{ .Quantity }} | {{ .Price }} | {{ .Amount.SignedString }} | {{ .ID }} |
{{- end }}
{{- else }}

No adjustment.
{{- end }}
{{- if .Skipped }}

## Skipped

{{ template "reconcile_rows" .Skipped }}
{{- end }}
{{- if .Errors }}

## Errors

{{ template "reconcile_rows" .Errors }}
{{- end }}
`

const reconcileRowsTemplate = `| Asset | Gap | Reason |
|:---|---:|:---|
{{- range . }}
| {{ .Asset }} | {{ .Gap }} | {{ .Reason }} |
{{- end }}`

// RenderReconciliation renders a reconciliation report to markdown.
func RenderReconciliation(r *Reconciliation) string {
	partials := map[string]string{
		"reconcile_rows": reconcileRowsTemplate,
	}
	return renderTemplate("reconciliation", reconciliationTemplate, partials, r)
}
