package price

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// point is a dated price.
type point struct {
	Date  date.Date
	Price decimal.Decimal
}

// series holds the prices of each asset sorted by date.
type series map[string][]point

// add records a price.
func (s series) add(asset string, day date.Date, p decimal.Decimal) {
	s[asset] = append(s[asset], point{day, p})
}

// sort orders every series by date, keeping the last value of a day.
func (s series) sort() {
	for asset, pts := range s {
		slices.SortStableFunc(pts, func(a, b point) int { return a.Date.Compare(b.Date) })
		s[asset] = pts
	}
}

// at returns the last price on or before day.
func (s series) at(asset string, day date.Date) (decimal.Decimal, bool) {
	pts := s[asset]
	i, _ := slices.BinarySearchFunc(pts, day, func(p point, d date.Date) int {
		if p.Date.After(d) {
			return 1
		}
		return -1
	})
	if i == 0 {
		return decimal.Zero, false
	}
	return pts[i-1].Price, true
}

// Feed serves a secondary market data file: one JSON object per line,
// {"id":"FUND1","date":"2025-01-31","price":12.3}. The file is read once,
// on first use. A missing file is an empty feed.
type Feed struct {
	Path string

	once   sync.Once
	prices series
	err    error
}

func (*Feed) Name() string { return "feed" }

func (f *Feed) Price(_ context.Context, asset string, day date.Date) (decimal.Decimal, bool, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return decimal.Zero, false, f.err
	}
	p, ok := f.prices.at(asset, day)
	return p, ok, nil
}

func (f *Feed) load() {
	f.prices = make(series)
	file, err := os.Open(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.err = err
		return
	}
	defer file.Close()
	f.prices, f.err = readFeed(file)
}

func readFeed(r io.Reader) (series, error) {
	s := make(series)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec struct {
			ID    string          `json:"id"`
			Date  date.Date       `json:"date"`
			Price decimal.Decimal `json:"price"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return s, fmt.Errorf("feed line %d: %w", line, err)
		}
		if rec.ID == "" || rec.Date.IsZero() {
			continue
		}
		s.add(rec.ID, rec.Date, rec.Price)
	}
	s.sort()
	return s, scanner.Err()
}
