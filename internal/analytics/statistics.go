package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/ledger"
)

// RecentLimit is how many invoices the statistics list.
const RecentLimit = 5

// paymentDetails fans the per-invoice financials out by currency. Every
// supported currency gets an entry, sorted by paid amount ascending with the
// supported order breaking ties.
func paymentDetails(rows []ledger.InvoiceFinancials) []PaymentDetail {
	type totals struct{ paid, unpaid decimal.Decimal }
	byCurrency := make(map[ledger.Currency]*totals, len(ledger.SupportedCurrencies))
	for _, c := range ledger.SupportedCurrencies {
		byCurrency[c] = &totals{}
	}
	for _, row := range rows {
		t, ok := byCurrency[row.Currency]
		if !ok {
			continue
		}
		payed := decimal.NewFromFloat(row.Payed)
		t.paid = t.paid.Add(payed)
		t.unpaid = t.unpaid.Add(row.Totals().Grand.Sub(payed))
	}

	details := make([]PaymentDetail, 0, len(ledger.SupportedCurrencies))
	for _, c := range ledger.SupportedCurrencies {
		t := byCurrency[c]
		details = append(details, PaymentDetail{
			Currency:     c,
			Code:         c.Code(),
			PaidAmount:   t.paid.InexactFloat64(),
			UnpaidAmount: t.unpaid.InexactFloat64(),
		})
	}
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].PaidAmount < details[j].PaidAmount
	})
	return details
}

// recentEntries converts recent rows, dropping those without items.
func recentEntries(rows []ledger.RecentInvoice) []ledger.ListEntry {
	entries := make([]ledger.ListEntry, 0, len(rows))
	for _, row := range rows {
		if entry, ok := row.Entry(); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}
