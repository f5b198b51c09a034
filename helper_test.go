package folio

import (
	"fmt"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// d is a helper for test to create a decimal from a literal string.
func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var seq int

// tx is a helper for test to create a transaction in USD. Disposal
// quantities are given positive and stored negative, amounts follow the
// cash flow sign convention.
func tx(day string, t TxType, quantity, price string) Transaction {
	seq++
	q := d(quantity)
	p := d(price)
	amount := q.Mul(p)
	if t.IsAcquisition() {
		amount = amount.Neg()
	}
	if t.IsDisposal() {
		q = q.Neg()
	}
	return Transaction{
		ID:       fmt.Sprintf("T%04d", seq),
		Date:     date.MustParse(day),
		Asset:    "X",
		Type:     t,
		Quantity: Q(q),
		Price:    p,
		Amount:   amount,
		Currency: "USD",
	}
}
