package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Totals holds the derived invoice amounts.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Net       decimal.Decimal `json:"netAmount"`
	Tax       decimal.Decimal `json:"tax"`
	Grand     decimal.Decimal `json:"grandTotal"`
	AmountDue decimal.Decimal `json:"amountDue"`
}

// ComputeTotals applies discount, then tax on the discounted amount, then shipping.
func ComputeTotals(subtotal, discount, taxPercentage, shipping, payed float64) Totals {
	sub := decimal.NewFromFloat(subtotal)
	net := sub.Sub(decimal.NewFromFloat(discount))
	tax := net.Mul(decimal.NewFromFloat(taxPercentage)).Div(hundred)
	grand := net.Add(tax).Add(decimal.NewFromFloat(shipping))
	return Totals{
		Subtotal:  sub,
		Net:       net,
		Tax:       tax,
		Grand:     grand,
		AmountDue: grand.Sub(decimal.NewFromFloat(payed)),
	}
}

// Amount renders the grand total with two decimals.
func (t Totals) Amount() string {
	return t.Grand.StringFixed(2)
}

// ItemsSubtotal sums quantity x price over items.
func ItemsSubtotal(items []Item) float64 {
	return LineRevenue(items).InexactFloat64()
}

// LineRevenue sums quantity x price over items without float drift.
func LineRevenue(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
