package cmd

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// newLogger returns the root logger: human readable on a terminal, JSON
// otherwise.
func newLogger(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	var output io.Writer = os.Stderr
	if isTerminal(os.Stderr) {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printMarkdown prints a markdown report, styled when stdout is a terminal.
func printMarkdown(md string) {
	if !isTerminal(os.Stdout) {
		os.Stdout.WriteString(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(160))
	if err != nil {
		os.Stdout.WriteString(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		os.Stdout.WriteString(md)
		return
	}
	os.Stdout.WriteString(out)
}
