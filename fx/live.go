package fx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// DefaultLiveURL is the intraday EUR/USD chart of Lang & Schwarz.
const DefaultLiveURL = "https://www.ls-tc.de/_rpc/json/instrument/chart/dataForInstrument?instrumentId=349938&series=intraday&type=mini"

// LiveQuote reads the latest intraday EUR/USD quote. It only knows today's
// rate for the EUR/USD pair.
type LiveQuote struct {
	URL    string
	Client *http.Client
}

// NewLiveQuote returns a LiveQuote on the default endpoint.
func NewLiveQuote(timeout time.Duration) *LiveQuote {
	return &LiveQuote{URL: DefaultLiveURL, Client: newClient(timeout)}
}

func (*LiveQuote) Name() string { return "live" }

func (l *LiveQuote) Rate(ctx context.Context, from, to string, on date.Date) (decimal.Decimal, error) {
	if on != date.Today() {
		return decimal.Zero, fmt.Errorf("live quote on %v: %w", on, ErrUnsupported)
	}
	var invert bool
	switch {
	case from == "EUR" && to == "USD":
	case from == "USD" && to == "EUR":
		invert = true
	default:
		return decimal.Zero, fmt.Errorf("%s/%s: %w", from, to, ErrUnsupported)
	}

	usdPerEUR, err := l.latest(ctx)
	if err != nil {
		return decimal.Zero, external(l.Name(), err)
	}
	if invert {
		return Invert(usdPerEUR), nil
	}
	return usdPerEUR, nil
}

// latest returns the last value of the intraday series.
func (l *LiveQuote) latest(ctx context.Context) (decimal.Decimal, error) {
	var jobj any
	if err := jwget(ctx, l.Client, l.URL, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("error in wget %q: %w", "EUR/USD", err)
	}
	path := "$.series.intraday.data[-1:][1]"
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error parsing %q: %q %w", "EUR/USD", path, err)
	}
	// jsonpath may return a list of one answer or the answer itself.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	val, ok := jval.(float64)
	if !ok || val <= 0 {
		return decimal.Zero, fmt.Errorf("error parsing %q: %q %s %v", "EUR/USD", path, "not a positive float", jval)
	}
	return decimal.NewFromFloat(val), nil
}
