package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/folio"
	"github.com/etnz/folio/reconcile"
	"github.com/etnz/folio/renderer"
	"github.com/etnz/folio/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// reconcileCmd holds the flags for the 'reconcile' subcommand.
type reconcileCmd struct {
	execute  bool
	verify   bool
	snapshot bool
	epsilon  string
}

func (*reconcileCmd) Name() string { return "reconcile" }
func (*reconcileCmd) Synopsis() string {
	return "align the ledger with the latest holding snapshot"
}
func (*reconcileCmd) Usage() string {
	return `folio reconcile [--execute|--verify] [--snapshot-date] [--epsilon <e>]

  Compares, for every asset, the quantity of the latest holding snapshot with
  the net quantity of the ledger, and proposes Adjustment_Buy or
  Adjustment_Sell transactions closing the gap.

  The default is a dry run. --execute records the adjustments in a single
  unit of work. --verify records nothing and exits with status 1 when any
  asset drifted or could not be checked.

  Adjustments are dated today, or on the snapshot date with --snapshot-date
  (or FOLIO_RECONCILE_DATING=snapshot). Running twice the same day records
  each adjustment once.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.execute, "execute", false, "record the adjustments")
	f.BoolVar(&c.verify, "verify", false, "check only, fail on any drift")
	f.BoolVar(&c.snapshot, "snapshot-date", false, "date adjustments on the snapshot date")
	f.StringVar(&c.epsilon, "epsilon", "", "quantity tolerance, defaults to FOLIO_EPSILON")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.execute && c.verify {
		fmt.Fprintln(os.Stderr, "Error: --execute and --verify are exclusive")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail("opening folio: %v", err)
	}
	defer a.Close()

	opts := reconcile.Options{
		Mode:           reconcile.DryRun,
		Epsilon:        a.cfg.Epsilon,
		Currency:       a.cfg.Currency,
		ExcludeClasses: a.cfg.ManualClasses,
	}
	for asset := range a.cfg.ManualAssets {
		opts.ExcludeAssets = append(opts.ExcludeAssets, asset)
	}
	if c.snapshot || a.cfg.DateSnapshot {
		opts.Dating = reconcile.DateSnapshot
	}
	if c.epsilon != "" {
		if opts.Epsilon, err = decimal.NewFromString(c.epsilon); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid epsilon: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	run := a.db.View
	switch {
	case c.execute:
		opts.Mode = reconcile.Execute
		run = a.db.Update
	case c.verify:
		opts.Mode = reconcile.Verify
	}

	engine := reconcile.New(a.adjustmentRates(), opts, a.log)
	var res reconcile.Result
	err = run(ctx, func(tx *store.Tx) error {
		var err error
		res, err = engine.Run(ctx, tx)
		if errors.Is(err, folio.ErrDrift) {
			// reported below, the unit of work is read-only anyway.
			return nil
		}
		return err
	})
	if err != nil {
		return fail("reconciling: %v", err)
	}

	printMarkdown(renderer.RenderReconciliation(renderer.NewReconciliation(res)))
	if opts.Mode == reconcile.Verify && !res.Verified() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// purgeCmd deletes the reconciliation adjustments.
type purgeCmd struct {
	execute bool
}

func (*purgeCmd) Name() string     { return "purge-adjustments" }
func (*purgeCmd) Synopsis() string { return "delete every reconciliation adjustment" }
func (*purgeCmd) Usage() string {
	return `folio purge-adjustments [--execute]

  Deletes the transactions recorded by 'folio reconcile'. The default is a
  dry run that only counts them.
`
}

func (c *purgeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.execute, "execute", false, "delete the adjustments")
}

func (c *purgeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail("opening folio: %v", err)
	}
	defer a.Close()

	run := a.db.View
	if c.execute {
		run = a.db.Update
	}
	var n int64
	err = run(ctx, func(tx *store.Tx) error {
		n, err = tx.DeleteBySource(ctx, folio.SourceReconcile)
		return err
	})
	if err != nil {
		return fail("purging adjustments: %v", err)
	}
	a.log.Info().Int64("deleted", n).Bool("dry_run", !c.execute).Msg("adjustments purged")
	if c.execute {
		fmt.Printf("%d adjustments deleted\n", n)
	} else {
		fmt.Printf("%d adjustments would be deleted, use --execute\n", n)
	}
	return subcommands.ExitSuccess
}
