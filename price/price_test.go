package price

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fixed is a Source backed by a map, counting its calls.
type fixed struct {
	name   string
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (f *fixed) Name() string { return f.name }
func (f *fixed) Price(_ context.Context, asset string, _ date.Date) (decimal.Decimal, bool, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, false, f.err
	}
	p, ok := f.prices[asset]
	return p, ok, nil
}

// mockQuoter is a testify mock of Quoter.
type mockQuoter struct{ mock.Mock }

func (m *mockQuoter) Price(ctx context.Context, ticker string, day date.Date) (decimal.Decimal, bool, error) {
	args := m.Called(ctx, ticker, day)
	return args.Get(0).(decimal.Decimal), args.Bool(1), args.Error(2)
}

func (m *mockQuoter) Prices(ctx context.Context, tickers []string, day date.Date) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, tickers, day)
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

var day = date.New(2025, 3, 3)

func TestResolver_Priority(t *testing.T) {
	override := &fixed{name: "override", prices: map[string]decimal.Decimal{"X": d("11")}}
	nav := &fixed{name: "nav", prices: map[string]decimal.Decimal{"X": d("12"), "Y": d("20")}}
	feed := &fixed{name: "feed", prices: map[string]decimal.Decimal{"X": d("13"), "Y": d("21"), "Z": d("30")}}

	r := NewResolver(zerolog.Nop(), override, nav, feed)
	ctx := context.Background()

	tests := []struct {
		asset      string
		wantPrice  string
		wantSource string
	}{
		{"X", "11", "override"},
		{"Y", "20", "nav"},
		{"Z", "30", "feed"},
	}
	for _, tc := range tests {
		q := r.Resolve(ctx, tc.asset, day)
		require.True(t, q.Found, tc.asset)
		assert.True(t, q.Price.Equal(d(tc.wantPrice)), "%s: price = %s", tc.asset, q.Price)
		assert.Equal(t, tc.wantSource, q.Source)
	}
}

func TestResolver_FailingTierIsSkipped(t *testing.T) {
	broken := &fixed{name: "quote", err: errors.New("timeout")}
	legacy := &fixed{name: "legacy", prices: map[string]decimal.Decimal{"X": d("9")}}

	q := NewResolver(zerolog.Nop(), broken, legacy).Resolve(context.Background(), "X", day)
	assert.True(t, q.Found)
	assert.Equal(t, "legacy", q.Source)
}

func TestResolver_NothingFound(t *testing.T) {
	a := &fixed{name: "a", err: errors.New("down")}
	b := &fixed{name: "b"}
	r := NewResolver(zerolog.Nop(), a, b)

	q := r.Resolve(context.Background(), "X", day)
	assert.False(t, q.Found)
	assert.True(t, q.Price.IsZero())

	// confirmed unavailability is cached too.
	r.Resolve(context.Background(), "X", day)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestResolver_Cache(t *testing.T) {
	src := &fixed{name: "nav", prices: map[string]decimal.Decimal{"X": d("12")}}
	r := NewResolver(zerolog.Nop(), src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r.Resolve(ctx, "X", day)
	}
	assert.Equal(t, 1, src.calls)

	r.Resolve(ctx, "X", day.Add(1))
	assert.Equal(t, 2, src.calls)

	// resolvers do not share their cache.
	NewResolver(zerolog.Nop(), src).Resolve(ctx, "X", day)
	assert.Equal(t, 3, src.calls)
}

func TestResolver_NonPositiveIsNotFound(t *testing.T) {
	zero := &fixed{name: "nav", prices: map[string]decimal.Decimal{"X": decimal.Zero}}
	legacy := &fixed{name: "legacy", prices: map[string]decimal.Decimal{"X": d("9")}}
	q := NewResolver(zerolog.Nop(), zero, legacy).Resolve(context.Background(), "X", day)
	assert.Equal(t, "legacy", q.Source)
}

func TestResolver_ResolveBatch(t *testing.T) {
	ctx := context.Background()
	nav := &fixed{name: "nav", prices: map[string]decimal.Decimal{"MSFT.US": d("400"), "FUND1": d("12")}}
	quoter := new(mockQuoter)
	// only bulk-eligible assets not priced by an earlier tier are fetched.
	quoter.On("Prices", ctx, []string{"AAPL.US", "VWCE.XETRA", "GONE.US"}, day).
		Return(map[string]decimal.Decimal{"AAPL.US": d("190")}, errors.New("chunk 2 failed"))
	// bulk misses are retried one by one, starting with the quote tier.
	quoter.On("Price", ctx, "VWCE.XETRA", day).Return(decimal.Zero, false, nil)
	quoter.On("Price", ctx, "GONE.US", day).Return(decimal.Zero, false, nil)
	manual := &fixed{name: "last_manual", prices: map[string]decimal.Decimal{"VWCE.XETRA": d("110"), "HOUSE": d("300000")}}

	r := NewResolver(zerolog.Nop(), nav, Quotes{Quoter: quoter, Label: "eodhd"}, manual)
	quotes := r.ResolveBatch(ctx, []string{"AAPL.US", "MSFT.US", "VWCE.XETRA", "FUND1", "HOUSE", "GONE.US"}, day)

	want := map[string]struct {
		price  string
		source string
	}{
		"AAPL.US":    {"190", "eodhd"},
		"MSFT.US":    {"400", "nav"},
		"VWCE.XETRA": {"110", "last_manual"},
		"FUND1":      {"12", "nav"},
		"HOUSE":      {"300000", "last_manual"},
	}
	require.Len(t, quotes, 6)
	for asset, w := range want {
		q := quotes[asset]
		require.True(t, q.Found, asset)
		assert.True(t, q.Price.Equal(d(w.price)), "%s: price = %s", asset, q.Price)
		assert.Equal(t, w.source, q.Source, asset)
	}
	assert.False(t, quotes["GONE.US"].Found)
	quoter.AssertExpectations(t)
	quoter.AssertNotCalled(t, "Price", mock.Anything, "AAPL.US", mock.Anything)

	// a second batch is served from the cache.
	r.ResolveBatch(ctx, []string{"AAPL.US", "GONE.US"}, day)
	quoter.AssertNumberOfCalls(t, "Prices", 1)
	quoter.AssertNumberOfCalls(t, "Price", 2)
}

// A failed bulk call falls back on single quotes, and duplicated assets are
// fetched once.
func TestResolver_ResolveBatch_BulkFailure(t *testing.T) {
	ctx := context.Background()
	quoter := new(mockQuoter)
	quoter.On("Prices", ctx, []string{"AAPL.US", "MSFT.US"}, day).
		Return(map[string]decimal.Decimal(nil), errors.New("timeout"))
	quoter.On("Price", ctx, "AAPL.US", day).Return(d("190"), true, nil)
	quoter.On("Price", ctx, "MSFT.US", day).Return(decimal.Zero, false, errors.New("timeout"))
	legacy := &fixed{name: "legacy", prices: map[string]decimal.Decimal{"MSFT.US": d("400")}}

	r := NewResolver(zerolog.Nop(), Quotes{Quoter: quoter, Label: "eodhd"}, legacy)
	quotes := r.ResolveBatch(ctx, []string{"AAPL.US", "MSFT.US", "AAPL.US"}, day)

	require.Len(t, quotes, 2)
	assert.True(t, quotes["AAPL.US"].Found)
	assert.True(t, quotes["AAPL.US"].Price.Equal(d("190")))
	assert.Equal(t, "eodhd", quotes["AAPL.US"].Source)
	assert.Equal(t, "legacy", quotes["MSFT.US"].Source)
	quoter.AssertNumberOfCalls(t, "Prices", 1)
	quoter.AssertNumberOfCalls(t, "Price", 2)

	q := r.Resolve(ctx, "AAPL.US", day)
	assert.True(t, q.Found)
	assert.True(t, q.Price.Equal(d("190")))
	quoter.AssertNumberOfCalls(t, "Price", 2)
}

func TestQuotes_SkipsNonTickers(t *testing.T) {
	quoter := new(mockQuoter)
	quoter.On("Price", mock.Anything, "AAPL.US", day).Return(d("190"), true, nil)
	q := Quotes{Quoter: quoter}

	_, ok, err := q.Price(context.Background(), "my-house", day)
	require.NoError(t, err)
	assert.False(t, ok)

	p, ok, err := q.Price(context.Background(), "AAPL.US", day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, p.Equal(d("190")))
	quoter.AssertNumberOfCalls(t, "Price", 1)
}

func TestBulkTicker(t *testing.T) {
	for _, s := range []string{"AAPL.US", "VWCE.XETRA", "BRK-B.US", "EURUSD.FOREX", "0700.HK"} {
		assert.True(t, BulkTicker.MatchString(s), s)
	}
	for _, s := range []string{"FUND1", "aapl.us", "AAPL.", "house", "VERYLONGTICKERNAME.US", "AAPL.U1"} {
		assert.False(t, BulkTicker.MatchString(s), s)
	}
}

func TestFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	content := `{"id":"FUND1","date":"2025-01-31","price":12.3}
{"id":"FUND1","date":"2025-02-28","price":12.9}

{"id":"FUND2","date":"2025-02-28","price":"7.5"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	f := &Feed{Path: path}
	ctx := context.Background()

	tests := []struct {
		asset string
		day   date.Date
		want  string
		found bool
	}{
		{"FUND1", date.New(2025, 2, 15), "12.3", true},
		{"FUND1", date.New(2025, 3, 1), "12.9", true},
		{"FUND1", date.New(2025, 2, 28), "12.9", true},
		{"FUND1", date.New(2025, 1, 1), "", false},
		{"FUND2", date.New(2025, 3, 1), "7.5", true},
		{"FUND3", date.New(2025, 3, 1), "", false},
	}
	for _, tc := range tests {
		p, ok, err := f.Price(ctx, tc.asset, tc.day)
		require.NoError(t, err)
		assert.Equal(t, tc.found, ok, "%s on %v", tc.asset, tc.day)
		if tc.found {
			assert.True(t, p.Equal(d(tc.want)), "%s on %v: %s", tc.asset, tc.day, p)
		}
	}
}

func TestFeed_Missing(t *testing.T) {
	f := &Feed{Path: filepath.Join(t.TempDir(), "none.jsonl")}
	_, ok, err := f.Price(context.Background(), "X", day)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLegacy(t *testing.T) {
	csv := `asset,date,price
HOUSE,2019-06-30,250000
HOUSE,2021-12-31,"275000,50"
broken row
FUND1,not a date,3
`
	s, err := readLegacy(strings.NewReader(csv))
	require.NoError(t, err)

	p, ok := s.at("HOUSE", date.New(2022, 1, 1))
	require.True(t, ok)
	assert.True(t, p.Equal(d("275000.5")))

	p, ok = s.at("HOUSE", date.New(2020, 1, 1))
	require.True(t, ok)
	assert.True(t, p.Equal(d("250000")))

	_, ok = s.at("FUND1", date.New(2022, 1, 1))
	assert.False(t, ok)
}

// records is an in-memory SnapshotReader.
type records map[string]folio.PersistedHoldingRecord

func (r records) LatestRecord(_ context.Context, asset string, _ date.Date) (folio.PersistedHoldingRecord, bool, error) {
	rec, ok := r[asset]
	return rec, ok, nil
}

func TestLastManual(t *testing.T) {
	src := LastManual{Reader: records{
		"X": {Asset: "X", Quantity: folio.Q(10), MarketValue: d("125")},
		"Y": {Asset: "Y", Quantity: folio.Q(0), MarketValue: d("0")},
	}}
	ctx := context.Background()

	p, ok, err := src.Price(ctx, "X", day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, p.Equal(d("12.5")))

	_, ok, err = src.Price(ctx, "Y", day)
	require.NoError(t, err)
	assert.False(t, ok)
}
