package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/ledger"
)

type bucket struct {
	label    string
	revenue  decimal.Decimal
	invoices int64
}

// bucketRevenue groups item-joined invoice rows by interval label and returns
// the series in ascending label order. Rows whose stored date does not parse
// are left out and counted in skipped.
func bucketRevenue(rows []ledger.InvoiceRevenue, interval dates.Interval) (series []bucket, skipped int) {
	byLabel := make(map[string]*bucket)
	seen := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		d, err := dates.Parse(row.Date)
		if err != nil {
			skipped++
			continue
		}
		label := interval.Label(d)
		b, ok := byLabel[label]
		if !ok {
			b = &bucket{label: label}
			byLabel[label] = b
		}
		b.revenue = b.revenue.Add(decimal.NewFromFloat(row.Revenue))
		if _, dup := seen[row.InvoiceID]; !dup {
			seen[row.InvoiceID] = struct{}{}
			b.invoices++
		}
	}

	series = make([]bucket, 0, len(byLabel))
	for _, b := range byLabel {
		series = append(series, *b)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].label < series[j].label })
	return series, skipped
}

// allocatePaid spreads the ledger paid total over the buckets by revenue
// share, or evenly when there is no revenue. The per-bucket figure is an
// approximation: the ledger does not record which invoice a payment belongs
// to at any finer grain than the invoice itself.
func allocatePaid(series []bucket, paid decimal.Decimal) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(series))
	if len(series) == 0 {
		return points
	}

	total := decimal.Zero
	for _, b := range series {
		total = total.Add(b.revenue)
	}
	even := paid.Div(decimal.NewFromInt(int64(len(series))))

	for _, b := range series {
		share := even
		if total.IsPositive() {
			share = b.revenue.Div(total).Mul(paid)
		}
		points = append(points, TimeSeriesPoint{
			IntervalLabel:    b.label,
			TotalItemRevenue: b.revenue.InexactFloat64(),
			InvoiceCount:     b.invoices,
			TotalPaidAmount:  share.InexactFloat64(),
		})
	}
	return points
}

// summarize builds the summary from the bucketed series and the ledger paid
// total over the same filtered invoices.
func summarize(series []bucket, paid decimal.Decimal) Summary {
	revenue := decimal.Zero
	var invoices int64
	for _, b := range series {
		revenue = revenue.Add(b.revenue)
		invoices += b.invoices
	}
	average := decimal.Zero
	if invoices > 0 {
		average = revenue.Div(decimal.NewFromInt(invoices))
	}
	return Summary{
		TotalItemRevenue:             revenue.InexactFloat64(),
		TotalInvoices:                invoices,
		TotalPaidAmount:              paid.InexactFloat64(),
		EstimatedOutstanding:         revenue.Sub(paid).InexactFloat64(),
		AverageItemRevenuePerInvoice: average.InexactFloat64(),
	}
}

type clientKey struct {
	label string
	email string
	name  string
}

type clientTotals struct {
	amount   decimal.Decimal
	paid     decimal.Decimal
	unpaid   decimal.Decimal
	invoices int64
}

// rollupClients groups per-invoice client rows by (bucket, email, name).
// Each invoice counts once per group, so an invoice with many lines does
// not inflate the invoice count or the paid sum.
func rollupClients(rows []ledger.ClientRevenue, interval dates.Interval) (out []ClientInvoiceData, skipped int) {
	type seenKey struct {
		key clientKey
		id  int64
	}
	groups := make(map[clientKey]*clientTotals)
	seen := make(map[seenKey]struct{}, len(rows))
	for _, row := range rows {
		d, err := dates.Parse(row.Date)
		if err != nil {
			skipped++
			continue
		}
		key := clientKey{label: interval.Label(d), email: row.ClientEmail, name: row.ClientName}
		if _, dup := seen[seenKey{key, row.InvoiceID}]; dup {
			continue
		}
		seen[seenKey{key, row.InvoiceID}] = struct{}{}

		g, ok := groups[key]
		if !ok {
			g = &clientTotals{}
			groups[key] = g
		}
		revenue := decimal.NewFromFloat(row.Revenue)
		payed := decimal.NewFromFloat(row.Payed)
		g.amount = g.amount.Add(revenue)
		g.paid = g.paid.Add(payed)
		g.unpaid = g.unpaid.Add(revenue.Sub(payed))
		g.invoices++
	}

	out = make([]ClientInvoiceData, 0, len(groups))
	for key, g := range groups {
		out = append(out, ClientInvoiceData{
			IntervalLabel:      key.label,
			ClientEmail:        key.email,
			ClientName:         key.name,
			TotalInvoiceAmount: g.amount.InexactFloat64(),
			TotalInvoices:      g.invoices,
			TotalPaidAmount:    g.paid.InexactFloat64(),
			TotalUnpaidAmount:  g.unpaid.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ClientName != b.ClientName {
			return a.ClientName < b.ClientName
		}
		if a.IntervalLabel != b.IntervalLabel {
			return a.IntervalLabel < b.IntervalLabel
		}
		return a.ClientEmail < b.ClientEmail
	})
	return out, skipped
}
