package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/invoicely/invoicely/internal/analytics"
)

// WriteSummaryCSV serialises the analytics summary to a CSV representation.
func WriteSummaryCSV(w io.Writer, summary analytics.Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"From", optional(summary.DateRange.From)},
		{"To", optional(summary.DateRange.To)},
		{"Interval", string(summary.Interval)},
		{"Currency", currencyLabel(summary.Currency.Code(), string(summary.Currency))},
		{"Item Revenue", formatFloat(summary.TotalItemRevenue)},
		{"Invoices", strconv.FormatInt(summary.TotalInvoices, 10)},
		{"Paid", formatFloat(summary.TotalPaidAmount)},
		{"Estimated Outstanding", formatFloat(summary.EstimatedOutstanding)},
		{"Average Revenue per Invoice", formatFloat(summary.AverageItemRevenuePerInvoice)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTimeSeriesCSV emits one row per interval bucket.
func WriteTimeSeriesCSV(w io.Writer, points []analytics.TimeSeriesPoint) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Interval", "Item Revenue", "Invoices", "Paid"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.IntervalLabel,
			formatFloat(point.TotalItemRevenue),
			strconv.FormatInt(point.InvoiceCount, 10),
			formatFloat(point.TotalPaidAmount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteClientsCSV emits the per-client rollup.
func WriteClientsCSV(w io.Writer, rows []analytics.ClientInvoiceData) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Interval", "Client", "Email", "Invoiced", "Invoices", "Paid", "Unpaid"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.IntervalLabel,
			row.ClientName,
			row.ClientEmail,
			formatFloat(row.TotalInvoiceAmount),
			strconv.FormatInt(row.TotalInvoices, 10),
			formatFloat(row.TotalPaidAmount),
			formatFloat(row.TotalUnpaidAmount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePaymentsCSV prints the per-currency payment totals.
func WritePaymentsCSV(w io.Writer, details []analytics.PaymentDetail) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Currency", "Paid", "Unpaid"}); err != nil {
		return err
	}
	for _, detail := range details {
		if err := writer.Write([]string{
			currencyLabel(detail.Code, string(detail.Currency)),
			formatFloat(detail.PaidAmount),
			formatFloat(detail.UnpaidAmount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optional(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func currencyLabel(code, symbol string) string {
	if code != "" {
		return code
	}
	if symbol != "" {
		return symbol
	}
	return "none"
}
