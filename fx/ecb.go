package fx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// DefaultECBURL is the ECB statistical data API.
const DefaultECBURL = "https://data-api.ecb.europa.eu/service/data/EXR"

// ECB reads daily reference rates published by the European Central Bank.
// All ECB series are quoted against EUR, other pairs are crossed through
// EUR. Weekends and holidays have no fixing, so up to LookBack previous days
// are tried.
type ECB struct {
	URL      string
	Client   *http.Client
	LookBack int
}

// NewECB returns an ECB provider on the default endpoint.
func NewECB(timeout time.Duration) *ECB {
	return &ECB{URL: DefaultECBURL, Client: newClient(timeout), LookBack: 7}
}

func (*ECB) Name() string { return "ecb" }

func (e *ECB) Rate(ctx context.Context, from, to string, on date.Date) (decimal.Decimal, error) {
	if from == to {
		return one, nil
	}
	// units of currency for one EUR.
	perEUR := func(cur string) (decimal.Decimal, error) {
		if cur == "EUR" {
			return one, nil
		}
		return e.reference(ctx, cur, on)
	}
	f, err := perEUR(from)
	if err != nil {
		return decimal.Zero, external(e.Name(), err)
	}
	t, err := perEUR(to)
	if err != nil {
		return decimal.Zero, external(e.Name(), err)
	}
	return t.DivRound(f, 16), nil
}

// ecbResponse is the subset of the SDMX json payload holding the value.
type ecbResponse struct {
	DataSets []struct {
		Series map[string]struct {
			Observations map[string][]float64 `json:"observations"`
		} `json:"series"`
	} `json:"dataSets"`
}

// reference returns the EUR reference rate of currency on the last fixing
// on or before day.
func (e *ECB) reference(ctx context.Context, currency string, day date.Date) (decimal.Decimal, error) {
	for i := 0; i < max(e.LookBack, 1); i++ {
		query := day.Add(-i)
		addr := fmt.Sprintf("%s/D.%s.EUR.SP00.A?startPeriod=%s&endPeriod=%s&format=jsondata", e.URL, currency, query, query)

		var data ecbResponse
		err := jwget(ctx, e.Client, addr, &data)
		if errors.Is(err, errNotFound) {
			continue // no fixing that day
		}
		if err != nil {
			return decimal.Zero, err
		}
		if rate, ok := data.value(); ok {
			return rate, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no %s reference rate on or before %v", currency, day)
}

func (r ecbResponse) value() (decimal.Decimal, bool) {
	if len(r.DataSets) == 0 {
		return decimal.Zero, false
	}
	for _, s := range r.DataSets[0].Series {
		if obs, ok := s.Observations["0"]; ok && len(obs) > 0 && obs[0] > 0 {
			return decimal.NewFromFloat(obs[0]), true
		}
	}
	return decimal.Zero, false
}
