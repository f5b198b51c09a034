// Command folio maintains an investment ledger and values the portfolio.
//
// Shell completion is installed with COMP_INSTALL=1 folio.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/folio/cmd"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	name := path.Base(os.Args[0])
	completion().Complete(name)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion describes the subcommands and their flags for the shell.
func completion() *complete.Command {
	root := &complete.Command{
		Sub: map[string]*complete.Command{
			"help":  {},
			"flags": {},
		},
		Flags: map[string]complete.Predictor{
			"env": predict.Files("*.env"),
			"db":  predict.Files("*.db"),
		},
	}
	for _, c := range cmd.Commands {
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(fs)
		sub := &complete.Command{Flags: make(map[string]complete.Predictor)}
		fs.VisitAll(func(f *flag.Flag) {
			if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
				sub.Flags[f.Name] = predict.Nothing
				return
			}
			sub.Flags[f.Name] = predict.Something
		})
		if c.Name() == "import" {
			sub.Args = predict.Files("*.jsonl")
		}
		root.Sub[c.Name()] = sub
	}
	return root
}
