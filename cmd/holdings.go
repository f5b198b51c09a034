package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/holdings"
	"github.com/etnz/folio/renderer"
	"github.com/etnz/folio/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// holdingsCmd holds the flags for the 'holdings' subcommand.
type holdingsCmd struct {
	date      string
	currency  string
	overrides priceFlags
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display the valued holdings on a date" }
func (*holdingsCmd) Usage() string {
	return `folio holdings [-d <date>] [-c <currency>] [-p ASSET=PRICE]...

  Displays the portfolio holdings on a given date: the transaction-derived
  positions and the manually tracked assets, valued in the reporting currency.

  Positions that no price source can value are reported at cost basis.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", date.Today().String(), "Date for the holdings report (YYYY-MM-DD)")
	f.StringVar(&c.currency, "c", "", "Reporting currency, defaults to FOLIO_CURRENCY")
	f.Var(&c.overrides, "p", "force the price of an asset, as ASSET=PRICE (repeatable)")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	on, err := date.Parse(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail("opening folio: %v", err)
	}
	defer a.Close()

	currency := a.cfg.Currency
	if c.currency != "" {
		currency = strings.ToUpper(c.currency)
		if err := folio.ValidateCurrency(currency); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	var rows []folio.HoldingSnapshot
	err = a.db.View(ctx, func(tx *store.Tx) error {
		computer := holdings.New(tx, a.prices(tx, c.overrides), a.rates(tx), a.cfg.Currency, a.cfg.ManualAssets, a.log).ReportIn(currency)
		rows, err = computer.Compute(ctx, on)
		return err
	})
	if err != nil {
		return fail("computing holdings: %v", err)
	}

	printMarkdown(renderer.RenderHoldings(renderer.NewHoldings(on, currency, rows, holdings.SourceCostBasis)))
	return subcommands.ExitSuccess
}

// priceFlags collects repeated ASSET=PRICE flags.
type priceFlags map[string]decimal.Decimal

func (p *priceFlags) String() string {
	var items []string
	for asset, v := range *p {
		items = append(items, asset+"="+v.String())
	}
	return strings.Join(items, ",")
}

func (p *priceFlags) Set(s string) error {
	asset, v, ok := strings.Cut(s, "=")
	if !ok || asset == "" {
		return fmt.Errorf("invalid price %q, want ASSET=PRICE", s)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", s, err)
	}
	if !d.IsPositive() {
		return fmt.Errorf("invalid price %q: must be positive", s)
	}
	if *p == nil {
		*p = make(priceFlags)
	}
	(*p)[asset] = d
	return nil
}
