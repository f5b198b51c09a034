package folio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/etnz/folio/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	input := `{"kind":"asset","id":"AAPL.US","name":"Apple","class":"Equity","currency":"USD"}
{"kind":"transaction","id":"B-1","date":"2025-01-01","asset":"AAPL.US","type":"Buy","quantity":10,"price":150,"amount":-1500,"currency":"USD"}

{"kind":"snapshot","snapshotDate":"2025-02-01","asset":"AAPL.US","quantity":12,"marketValue":1800,"currency":"USD"}
{"kind":"price","asset":"FUND1","date":"2025-02-01","price":12.5}
{"kind":"ledger","line":"house","date":"2025-02-01","amount":350000,"currency":"EUR"}
{"kind":"fx","base":"USD","quote":"EUR","date":"2025-02-01","rate":0.92}
`
	var got []Record
	for rec, err := range Decode(strings.NewReader(input)) {
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 6)

	assert.Equal(t, Asset{ID: "AAPL.US", Name: "Apple", Class: "Equity", Currency: "USD"}, got[0])

	tx, ok := got[1].(Transaction)
	require.True(t, ok)
	assert.Equal(t, Buy, tx.Type)
	assert.True(t, tx.Quantity.Equal(Q(10)))
	assert.True(t, tx.Amount.Equal(d("-1500")))

	snap, ok := got[2].(PersistedHoldingRecord)
	require.True(t, ok)
	price, ok := snap.ImpliedPrice()
	assert.True(t, ok)
	assert.True(t, price.Equal(d("150")))

	assert.Equal(t, KindPrice, got[3].Kind())
	assert.Equal(t, KindLedgerAmount, got[4].Kind())
	assert.Equal(t, KindFXQuote, got[5].Kind())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown kind", `{"kind":"gift"}`, `unsupported record kind "gift"`},
		{"not json", `hello`, "could not identify record kind"},
		{"bad field", `{"kind":"price","price":"abc"}`, "line 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var errs []error
			for _, err := range Decode(strings.NewReader(tc.input)) {
				errs = append(errs, err)
			}
			require.Len(t, errs, 1)
			assert.ErrorContains(t, errs[0], tc.want)
		})
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	tx := Transaction{
		ID:       "ADJ-1",
		Date:     date.New(2025, 3, 1),
		Asset:    "X",
		Type:     AdjustmentBuy,
		Quantity: Q(5),
		Price:    d("10"),
		Amount:   d("-50"),
		Currency: "EUR",
		Source:   SourceReconcile,
	}
	require.NoError(t, Encode(&buf, tx))
	assert.Equal(t, `{"kind":"transaction","id":"ADJ-1","date":"2025-03-01","asset":"X","type":"Adjustment_Buy","quantity":5,"price":10,"amount":-50,"currency":"EUR","source":"reconcile"}`+"\n", buf.String())

	var got []Record
	for rec, err := range Decode(&buf) {
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 1)
	assert.Equal(t, tx.ID, got[0].(Transaction).ID)
}
