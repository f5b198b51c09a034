package eodhd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// value is a price field that the API sometimes reports as "NA".
type value struct {
	decimal.Decimal
	Valid bool
}

func (v *value) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" || s == `"NA"` || s == `""` {
		*v = value{}
		return nil
	}
	if err := v.Decimal.UnmarshalJSON(b); err != nil {
		return err
	}
	v.Valid = true
	return nil
}

// realtime is one item of the real-time endpoint.
type realtime struct {
	Code  string `json:"code"`
	Close value  `json:"close"`
}

// eod is one item of the end of day endpoint.
type eod struct {
	Date  date.Date `json:"date"`
	Open  value     `json:"open"`
	Close value     `json:"close"`
}

// lookBack is the number of days searched backwards for a close, to skip
// week-ends and holidays.
const lookBack = 7

// Price returns the price of ticker on day. Today's price is the latest
// real-time quote, past prices are the last close on or before day. The
// boolean is false when the API has no value.
func (c *Client) Price(ctx context.Context, ticker string, day date.Date) (decimal.Decimal, bool, error) {
	if !day.Before(date.Today()) {
		quotes, err := c.realtime(ctx, []string{ticker})
		if err != nil {
			return decimal.Zero, false, err
		}
		p, ok := quotes[ticker]
		return p, ok, nil
	}
	return c.close(ctx, ticker, day)
}

// close returns the last close on or before day.
func (c *Client) close(ctx context.Context, ticker string, day date.Date) (decimal.Decimal, bool, error) {
	history, err := c.eod(ctx, ticker, day.Add(-lookBack), day)
	if err != nil {
		return decimal.Zero, false, err
	}
	var (
		last  decimal.Decimal
		found bool
		when  date.Date
	)
	for _, h := range history {
		if !h.Close.Valid || h.Date.After(day) || h.Date.Before(when) {
			continue
		}
		last, found, when = h.Close.Decimal, true, h.Date
	}
	return last, found, nil
}

// eod fetches the daily history of ticker, bounds included.
func (c *Client) eod(ctx context.Context, ticker string, from, to date.Date) ([]eod, error) {
	// https://eodhd.com/api/eod/NVD.F?api_token=demo&fmt=json&from=2024-02-01&to=2024-02-13
	// [{"date":"2024-02-13","open":675.066,"high":684.219,"low":648.659,"close":668.445,"adjusted_close":67.705,"volume":0}]
	addr := c.endpoint("/eod/"+url.PathEscape(ticker), url.Values{"from": {from.String()}, "to": {to.String()}})
	content := make([]eod, 0)
	if err := c.jwget(ctx, addr, &content); err != nil {
		return nil, fmt.Errorf("eod %s: %w", ticker, err)
	}
	return content, nil
}

// realtime fetches the latest quote of up to ChunkSize tickers in a single
// call. Tickers without a value are absent from the result.
func (c *Client) realtime(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	// https://eodhd.com/api/real-time/AAPL.US?s=VTI.US,EUR.FOREX&api_token=demo&fmt=json
	// a single ticker returns an object, several return an array.
	var query url.Values
	if len(tickers) > 1 {
		query = url.Values{"s": {strings.Join(tickers[1:], ",")}}
	}
	addr := c.endpoint("/real-time/"+url.PathEscape(tickers[0]), query)

	var raw json.RawMessage
	if err := c.jwget(ctx, addr, &raw); err != nil {
		return nil, fmt.Errorf("real-time %s: %w", strings.Join(tickers, ","), err)
	}
	var items []realtime
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
	} else {
		var one realtime
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		items = append(items, one)
	}

	quotes := make(map[string]decimal.Decimal, len(items))
	for _, it := range items {
		if it.Close.Valid && it.Close.IsPositive() {
			quotes[it.Code] = it.Close.Decimal
		}
	}
	return quotes, nil
}

// Prices fetches the price of several tickers on day. Today's prices come
// from chunked real-time calls, past prices from one end of day call per
// ticker. Calls run in parallel. A failed call does not abort the others:
// the prices obtained are returned along with the joined errors.
func (c *Client) Prices(ctx context.Context, tickers []string, day date.Date) (map[string]decimal.Decimal, error) {
	var (
		mu     sync.Mutex
		prices = make(map[string]decimal.Decimal, len(tickers))
		errs   []error
	)
	collect := func(got map[string]decimal.Decimal, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
		for k, v := range got {
			prices[k] = v
		}
	}

	var g errgroup.Group
	g.SetLimit(max(1, c.Parallelism))
	if !day.Before(date.Today()) {
		for chunk := range slices.Chunk(tickers, max(1, c.ChunkSize)) {
			g.Go(func() error {
				collect(c.realtime(ctx, chunk))
				return nil
			})
		}
	} else {
		for _, ticker := range tickers {
			g.Go(func() error {
				p, ok, err := c.close(ctx, ticker, day)
				if ok {
					collect(map[string]decimal.Decimal{ticker: p}, err)
				} else {
					collect(nil, err)
				}
				return nil
			})
		}
	}
	_ = g.Wait() // goroutines report through collect.

	c.log.Debug().Int("requested", len(tickers)).Int("found", len(prices)).Int("errors", len(errs)).Stringer("date", day).Msg("bulk prices")
	return prices, errors.Join(errs...)
}
