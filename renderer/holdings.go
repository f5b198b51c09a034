package renderer

import (
	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Holdings is the data of a holdings report.
type Holdings struct {
	Date        date.Date
	Currency    string
	Total       folio.Money
	CostBasis   folio.Money
	PnL         folio.Money
	Positions   []HoldingRow // transaction-derived
	Manual      []HoldingRow // manually tracked
	AtCostBasis int          // number of positions without a market price
}

// HoldingRow is a single line of the holdings report.
type HoldingRow struct {
	Asset       string
	Name        string
	Quantity    folio.Quantity
	Price       folio.Money // in the asset currency
	Source      string
	MarketValue folio.Money // in the reporting currency
	PnL         folio.Money
	PnLPercent  decimal.Decimal
	Weight      decimal.Decimal // in percent
}

// NewHoldings builds the report data of rows valued in currency.
func NewHoldings(day date.Date, currency string, rows []folio.HoldingSnapshot, costBasisSource string) *Holdings {
	h := &Holdings{
		Date:      day,
		Currency:  currency,
		Total:     folio.M(0, currency),
		CostBasis: folio.M(0, currency),
		PnL:       folio.M(0, currency),
	}
	hundred := decimal.NewFromInt(100)
	for _, r := range rows {
		cur := r.Currency
		if cur == "" {
			cur = currency
		}
		row := HoldingRow{
			Asset:       cell(r.Asset),
			Name:        cell(r.Name),
			Quantity:    r.Quantity,
			Price:       folio.M(r.Price, cur),
			Source:      r.PriceSource,
			MarketValue: folio.M(r.MarketValue, currency),
			PnL:         folio.M(r.UnrealizedPnL, currency),
			PnLPercent:  r.PnLPercent,
			Weight:      r.Weight.Mul(hundred),
		}
		h.Total = h.Total.Add(row.MarketValue)
		h.CostBasis = h.CostBasis.Add(folio.M(r.CostBasis, currency))
		h.PnL = h.PnL.Add(row.PnL)
		if r.PriceSource == costBasisSource {
			h.AtCostBasis++
		}
		if r.Manual {
			h.Manual = append(h.Manual, row)
		} else {
			h.Positions = append(h.Positions, row)
		}
	}
	return h
}

const holdingsTemplate = `# Holdings on {{ .Date }}

Total Portfolio Value: **{{ .Total }}**

Cost Basis: {{ .CostBasis }}, Unrealized Gain: {{ .PnL.SignedString }}
{{- if .AtCostBasis }}

{{ .AtCostBasis }} position(s) valued at cost basis, no market price was found.
{{- end }}
{{- if .Positions }}

## Positions

{{ template "holdings_table" .Positions }}
{{- end }}
{{- if .Manual }}

## Manually Tracked

{{ template "holdings_table" .Manual }}
{{- end }}
`

const holdingsTableTemplate = `| Asset | Quantity | Price | Source | Market Value | Unrealized | Return | Weight |
|:---|---:|---:|:---|---:|---:|---:|---:|
{{- range . }}
| {{ .Asset }}{{ if .Name }} {{ .Name }}{{ end }} | {{ .Quantity }} | {{ .Price }} | {{ .Source }} | {{ .MarketValue }} | {{ .PnL.SignedString }} | {{ percent .PnLPercent }} | {{ percent .Weight }} |
{{- end }}`

// RenderHoldings renders a holdings report to markdown.
func RenderHoldings(h *Holdings) string {
	partials := map[string]string{
		"holdings_table": holdingsTableTemplate,
	}
	return renderTemplate("holdings", holdingsTemplate, partials, h)
}
