// Package cmd implements the folio command line application.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/etnz/folio/config"
	"github.com/etnz/folio/eodhd"
	"github.com/etnz/folio/fx"
	"github.com/etnz/folio/price"
	"github.com/etnz/folio/store"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Commands lists the folio subcommands.
var Commands = []subcommands.Command{
	&importCmd{},
	&holdingsCmd{},
	&priceCmd{},
	&rateCmd{},
	&reconcileCmd{},
	&purgeCmd{},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands {
		c.Register(cmd, "")
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var envFile = flag.String("env", ".env", "Path to an optional .env configuration file")
var dbPath = flag.String("db", "", "Path to the ledger database, overrides FOLIO_DB")

// app is the state shared by the subcommands of a run.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *store.DB
	quote *eodhd.Client // nil without an api key
}

// openApp loads the configuration and opens the ledger database.
func openApp(ctx context.Context) (*app, error) {
	var files []string
	if _, err := os.Stat(*envFile); err == nil {
		files = append(files, *envFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	a := &app{cfg: cfg, log: newLogger(cfg.LogLevel)}
	a.db, err = store.Open(ctx, cfg.DatabasePath, a.log)
	if err != nil {
		return nil, err
	}
	if cfg.EODHDAPIKey != "" {
		var opts []eodhd.Option
		if cfg.CacheDir != "" {
			opts = append(opts, eodhd.WithDiskCache(cfg.CacheDir))
		}
		a.quote = eodhd.New(cfg.EODHDAPIKey, cfg.HTTPTimeout, a.log, opts...)
	}
	return a, nil
}

func (a *app) Close() error { return a.db.Close() }

// rates returns the fx chain used to value holdings: live quote, eodhd,
// ECB reference rates, the recorded rates, then the hardcoded table.
func (a *app) rates(tx *store.Tx) *fx.Chain {
	providers := []fx.Provider{fx.NewLiveQuote(a.cfg.HTTPTimeout)}
	if a.quote != nil {
		providers = append(providers, a.quote)
	}
	providers = append(providers,
		fx.NewECB(a.cfg.HTTPTimeout),
		fx.Table{Reader: tx},
		fx.DefaultFixed(),
	)
	return fx.NewChain(a.log, providers...)
}

// adjustmentRates returns the fx chain of reconciliation adjustments: live
// quote, a secondary source, then the hardcoded table.
func (a *app) adjustmentRates() *fx.Chain {
	var secondary fx.Provider = fx.NewECB(a.cfg.HTTPTimeout)
	if a.quote != nil {
		secondary = a.quote
	}
	return fx.NewChain(a.log, fx.NewLiveQuote(a.cfg.HTTPTimeout), secondary, fx.DefaultFixed())
}

// prices returns the price chain, by priority: overrides, the NAV table,
// the feed file, external quotes, the last snapshot, the legacy file.
func (a *app) prices(tx *store.Tx, static map[string]decimal.Decimal) *price.Resolver {
	sources := []price.Source{
		price.Overrides{Static: static, Reader: tx},
		price.NAVTable{Reader: tx},
	}
	if a.cfg.FeedPath != "" {
		sources = append(sources, &price.Feed{Path: a.cfg.FeedPath})
	}
	if a.quote != nil {
		sources = append(sources, price.Quotes{Quoter: a.quote, Label: "eodhd"})
	}
	sources = append(sources, price.LastManual{Reader: tx})
	if a.cfg.LegacyPrices != "" {
		sources = append(sources, &price.Legacy{Path: a.cfg.LegacyPrices})
	}
	return price.NewResolver(a.log, sources...)
}

// fail prints err and returns the failure exit status.
func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error "+format+"\n", args...)
	return subcommands.ExitFailure
}
