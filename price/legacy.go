package price

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Legacy serves the spreadsheet era prices exported as CSV with columns
// asset,date,price. A header row and malformed rows are skipped. The file is
// read once, on first use. A missing file is an empty source.
type Legacy struct {
	Path string

	once   sync.Once
	prices series
	err    error
}

func (*Legacy) Name() string { return "legacy" }

func (l *Legacy) Price(_ context.Context, asset string, day date.Date) (decimal.Decimal, bool, error) {
	l.once.Do(l.load)
	if l.err != nil {
		return decimal.Zero, false, l.err
	}
	p, ok := l.prices.at(asset, day)
	return p, ok, nil
}

func (l *Legacy) load() {
	l.prices = make(series)
	file, err := os.Open(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		l.err = err
		return
	}
	defer file.Close()
	l.prices, l.err = readLegacy(file)
}

func readLegacy(r io.Reader) (series, error) {
	s := make(series)
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s, fmt.Errorf("legacy prices: %w", err)
		}
		if len(row) < 3 {
			continue
		}
		day, err := date.Parse(strings.TrimSpace(row[1]))
		if err != nil {
			continue // header or garbage
		}
		// spreadsheets export decimal commas.
		p, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(row[2]), ",", "."))
		if err != nil {
			continue
		}
		s.add(strings.TrimSpace(row[0]), day, p)
	}
	s.sort()
	return s, nil
}
