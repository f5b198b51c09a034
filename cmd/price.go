package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/folio/date"
	"github.com/etnz/folio/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// priceCmd resolves, or overrides, the price of an asset.
type priceCmd struct {
	asset    string
	date     string
	override string
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "resolve the price of an asset" }
func (*priceCmd) Usage() string {
	return `folio price -a <asset> [-d <date>] [-set <price>]

  Resolves the price of an asset on a date through the price sources, and
  prints the source that served it.

  With -set, records a manual price override from that date on instead.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "a", "", "asset id")
	f.StringVar(&c.date, "d", date.Today().String(), "Date of the price (YYYY-MM-DD)")
	f.StringVar(&c.override, "set", "", "record this price as a manual override")
}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.asset == "" {
		fmt.Fprintln(os.Stderr, "Error: -a is required")
		return subcommands.ExitUsageError
	}
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

	if c.override != "" {
		p, err := decimal.NewFromString(c.override)
		if err != nil || !p.IsPositive() {
			fmt.Fprintf(os.Stderr, "Error: invalid price %q\n", c.override)
			return subcommands.ExitUsageError
		}
		err = a.db.Update(ctx, func(tx *store.Tx) error {
			return tx.SetOverride(ctx, c.asset, on, p)
		})
		if err != nil {
			return fail("recording override: %v", err)
		}
		fmt.Printf("%s forced to %s from %s\n", c.asset, p, on)
		return subcommands.ExitSuccess
	}

	err = a.db.View(ctx, func(tx *store.Tx) error {
		q := a.prices(tx, nil).Resolve(ctx, c.asset, on)
		if !q.Found {
			fmt.Printf("%s: no price on %s\n", c.asset, on)
			return nil
		}
		fmt.Printf("%s: %s on %s (source: %s)\n", c.asset, q.Price, on, q.Source)
		return nil
	})
	if err != nil {
		return fail("resolving price: %v", err)
	}
	return subcommands.ExitSuccess
}

// rateCmd resolves an exchange rate.
type rateCmd struct {
	from, to string
	date     string
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "resolve an exchange rate" }
func (*rateCmd) Usage() string {
	return `folio rate -from <currency> [-to <currency>] [-d <date>]

  Resolves the number of units of the target currency for one unit of the
  source currency, and prints the source that served it.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "USD", "source currency")
	f.StringVar(&c.to, "to", "", "target currency, defaults to FOLIO_CURRENCY")
	f.StringVar(&c.date, "d", date.Today().String(), "Date of the rate (YYYY-MM-DD)")
}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
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
	to := c.to
	if to == "" {
		to = a.cfg.Currency
	}

	err = a.db.View(ctx, func(tx *store.Tx) error {
		q, err := a.rates(tx).Quote(ctx, c.from, to, on)
		if err != nil {
			return err
		}
		fmt.Printf("1 %s = %s %s on %s (source: %s)\n", q.From, q.Rate, q.To, on, q.Source)
		return nil
	})
	if err != nil {
		return fail("resolving rate: %v", err)
	}
	return subcommands.ExitSuccess
}
