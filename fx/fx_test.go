package fx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stub is a Provider returning a fixed answer and counting calls.
type stub struct {
	name  string
	rate  decimal.Decimal
	err   error
	calls int
}

func (s *stub) Name() string { return s.name }
func (s *stub) Rate(context.Context, string, string, date.Date) (decimal.Decimal, error) {
	s.calls++
	return s.rate, s.err
}

func TestChain_Fallback(t *testing.T) {
	ctx := context.Background()
	on := date.New(2025, 3, 3)

	tests := []struct {
		name       string
		providers  []*stub
		wantRate   string
		wantSource string
		wantErr    bool
	}{
		{
			name:       "first tier wins",
			providers:  []*stub{{name: "live", rate: d("0.91")}, {name: "ecb", rate: d("0.92")}},
			wantRate:   "0.91",
			wantSource: "live",
		},
		{
			name:       "failing tier is skipped",
			providers:  []*stub{{name: "live", err: errors.New("timeout")}, {name: "ecb", rate: d("0.92")}},
			wantRate:   "0.92",
			wantSource: "ecb",
		},
		{
			name:       "non positive rate is skipped",
			providers:  []*stub{{name: "live", rate: decimal.Zero}, {name: "hardcoded", rate: d("0.9")}},
			wantRate:   "0.9",
			wantSource: "hardcoded",
		},
		{
			name:      "all tiers fail",
			providers: []*stub{{name: "live", err: errors.New("down")}, {name: "ecb", err: ErrUnsupported}},
			wantErr:   true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ps []Provider
			for _, p := range tc.providers {
				ps = append(ps, p)
			}
			q, err := NewChain(zerolog.Nop(), ps...).Quote(ctx, "USD", "EUR", on)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, q.Rate.Equal(d(tc.wantRate)), "rate = %s", q.Rate)
			assert.Equal(t, tc.wantSource, q.Source)
		})
	}
}

func TestChain_Identity(t *testing.T) {
	p := &stub{name: "never", err: errors.New("must not be called")}
	q, err := NewChain(zerolog.Nop(), p).Quote(context.Background(), "EUR", "EUR", date.Today())
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(d("1")))
	assert.Equal(t, 0, p.calls)
}

func TestChain_Memo(t *testing.T) {
	p := &stub{name: "live", rate: d("0.9")}
	c := NewChain(zerolog.Nop(), p)
	on := date.New(2025, 1, 2)
	for i := 0; i < 3; i++ {
		_, err := c.Rate(context.Background(), "USD", "EUR", on)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p.calls)

	_, err := c.Rate(context.Background(), "USD", "EUR", on.Add(1))
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestFixed(t *testing.T) {
	f := DefaultFixed()
	ctx := context.Background()

	r, err := f.Rate(ctx, "USD", "EUR", date.Date{})
	require.NoError(t, err)
	assert.True(t, r.Equal(d("0.9")))

	inv, err := f.Rate(ctx, "EUR", "USD", date.Date{})
	require.NoError(t, err)
	assert.True(t, inv.Mul(r).Sub(d("1")).Abs().LessThan(d("1e-12")))

	_, err = f.Rate(ctx, "BRL", "EUR", date.Date{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestConvert_RoundTrip(t *testing.T) {
	ctx := context.Background()
	chain := NewChain(zerolog.Nop(), DefaultFixed())
	on := date.New(2025, 1, 2)

	for _, amount := range []string{"1", "1234.56", "0.01", "987654321.123"} {
		eur, err := Convert(ctx, chain, d(amount), "USD", "EUR", on)
		require.NoError(t, err)
		back, err := Convert(ctx, chain, eur, "EUR", "USD", on)
		require.NoError(t, err)
		assert.True(t, back.Sub(d(amount)).Abs().LessThan(d("1e-6")), "%s round trip gave %s", amount, back)
	}
}

func TestLiveQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"series":{"intraday":{"data":[[1700000000000,1.081],[1700000060000,1.0875]]}}}`)
	}))
	defer srv.Close()

	l := &LiveQuote{URL: srv.URL, Client: srv.Client()}
	ctx := context.Background()

	r, err := l.Rate(ctx, "EUR", "USD", date.Today())
	require.NoError(t, err)
	assert.True(t, r.Equal(d("1.0875")), "rate = %s", r)

	inv, err := l.Rate(ctx, "USD", "EUR", date.Today())
	require.NoError(t, err)
	assert.True(t, inv.Mul(r).Sub(d("1")).Abs().LessThan(d("1e-12")))

	_, err = l.Rate(ctx, "EUR", "USD", date.Today().Add(-1))
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = l.Rate(ctx, "GBP", "USD", date.Today())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLiveQuote_BadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"series":{}}`)
	}))
	defer srv.Close()

	_, err := (&LiveQuote{URL: srv.URL, Client: srv.Client()}).Rate(context.Background(), "EUR", "USD", date.Today())
	assert.ErrorIs(t, err, folio.ErrExternalSource)
}

func TestECB(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// only Friday 2025-01-03 has a fixing.
		if r.URL.Query().Get("startPeriod") != "2025-01-03" {
			http.NotFound(w, r)
			return
		}
		rate := "1.0"
		switch {
		case strings.Contains(r.URL.Path, "D.USD.EUR"):
			rate = "1.25"
		case strings.Contains(r.URL.Path, "D.GBP.EUR"):
			rate = "0.8"
		}
		fmt.Fprintf(w, `{"dataSets":[{"series":{"0:0:0:0:0":{"observations":{"0":[%s,0,0]}}}}]}`, rate)
	}))
	defer srv.Close()

	e := &ECB{URL: srv.URL, Client: srv.Client(), LookBack: 7}
	ctx := context.Background()
	sunday := date.New(2025, 1, 5)

	r, err := e.Rate(ctx, "USD", "EUR", sunday)
	require.NoError(t, err)
	assert.True(t, r.Equal(d("0.8")), "USD/EUR = %s", r)
	assert.Equal(t, int32(3), calls.Load())

	r, err = e.Rate(ctx, "EUR", "USD", sunday)
	require.NoError(t, err)
	assert.True(t, r.Equal(d("1.25")), "EUR/USD = %s", r)

	r, err = e.Rate(ctx, "GBP", "USD", sunday)
	require.NoError(t, err)
	assert.True(t, r.Equal(d("1.5625")), "GBP/USD = %s", r)

	_, err = e.Rate(ctx, "USD", "EUR", date.New(2024, 12, 20))
	assert.ErrorIs(t, err, folio.ErrExternalSource)
}

// rates is an in-memory RateReader.
type rates map[[2]string]decimal.Decimal

func (r rates) LatestFXRate(_ context.Context, base, quote string, _ date.Date) (decimal.Decimal, bool, error) {
	v, ok := r[[2]string{base, quote}]
	return v, ok, nil
}

func TestTable(t *testing.T) {
	tbl := Table{Reader: rates{{"USD", "EUR"}: d("0.8")}}
	ctx := context.Background()

	r, err := tbl.Rate(ctx, "USD", "EUR", date.Today())
	require.NoError(t, err)
	assert.True(t, r.Equal(d("0.8")))

	r, err = tbl.Rate(ctx, "EUR", "USD", date.Today())
	require.NoError(t, err)
	assert.True(t, r.Equal(d("1.25")))

	_, err = tbl.Rate(ctx, "GBP", "EUR", date.Today())
	assert.ErrorIs(t, err, ErrUnsupported)
}
