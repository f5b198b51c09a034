package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/folio"
	"github.com/etnz/folio/store"
	"github.com/google/subcommands"
)

// importCmd loads JSONL files into the ledger database.
type importCmd struct {
	dryRun bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import transactions, snapshots and market data" }
func (*importCmd) Usage() string {
	return `folio import [-n] <file.jsonl>...

  Imports JSONL records into the ledger database. Each line is a JSON object
  with a "kind" field: transaction, asset, snapshot, price, ledger or fx.
  Standard input is read when no file is given.

  Transactions whose id is already recorded are skipped. Each file is
  imported in a single unit of work: a malformed line aborts the whole file.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "n", false, "dry run, check the files without recording anything")
}

// importStats counts the outcome of an import.
type importStats struct {
	loaded, duplicates, invalid int
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail("opening folio: %v", err)
	}
	defer a.Close()

	files := f.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	run := a.db.Update
	if c.dryRun {
		run = a.db.View
	}

	status := subcommands.ExitSuccess
	for _, file := range files {
		var stats importStats
		err := run(ctx, func(tx *store.Tx) error {
			r, closer, err := open(file)
			if err != nil {
				return err
			}
			defer closer.Close()
			stats, err = load(ctx, a, tx, r)
			return err
		})
		ev := a.log.Info()
		if err != nil {
			ev = a.log.Error().Err(err)
			status = subcommands.ExitFailure
		}
		ev.Str("file", file).Bool("dry_run", c.dryRun).
			Int("loaded", stats.loaded).
			Int("duplicates", stats.duplicates).
			Int("invalid", stats.invalid).
			Msg("import finished")
		if err == nil {
			fmt.Printf("%s: %d records loaded, %d duplicates skipped, %d invalid\n", file, stats.loaded, stats.duplicates, stats.invalid)
		}
	}
	return status
}

func open(file string) (io.Reader, io.Closer, error) {
	if file == "-" {
		return os.Stdin, io.NopCloser(nil), nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// load records every record read from r. Duplicate and invalid
// transactions are skipped and counted.
func load(ctx context.Context, a *app, tx *store.Tx, r io.Reader) (importStats, error) {
	var stats importStats
	for rec, err := range folio.Decode(r) {
		if err != nil {
			return stats, err
		}
		err := tx.Load(ctx, rec)
		switch {
		case errors.Is(err, folio.ErrDuplicateID):
			a.log.Debug().Err(err).Msg("duplicate skipped")
			stats.duplicates++
		case err != nil && rec.Kind() == folio.KindTransaction:
			a.log.Warn().Err(err).Msg("invalid transaction skipped")
			stats.invalid++
		case err != nil:
			return stats, err
		default:
			stats.loaded++
		}
	}
	return stats, nil
}
