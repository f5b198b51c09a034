// Package renderer turns holdings and reconciliation results into markdown
// reports. Reports are plain markdown, the CLI renders them for the terminal.
package renderer

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"
)

var funcs = template.FuncMap{
	"percent": percent,
}

// renderTemplate renders a main template that depends on several partials.
func renderTemplate(name, main string, partials map[string]string, data any) string {
	tmpl, err := template.New(name).Funcs(funcs).Parse(main)
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", name, err)
	}
	for partial, content := range partials {
		if _, err := tmpl.New(partial).Parse(content); err != nil {
			return fmt.Sprintf("error parsing partial template %q: %v", partial, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", name, err)
	}
	return b.String()
}

// percent formats a percentage with two decimals, e.g. "12.50%".
func percent(p decimal.Decimal) string {
	return p.StringFixed(2) + "%"
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
