package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/invoicely/invoicely/internal/analytics"
	"github.com/invoicely/invoicely/internal/analytics/export"
	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/ledger"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Analytics is the read side the report commands print.
type Analytics interface {
	ComputeAnalytics(ctx context.Context, filter analytics.Filter) (analytics.Result, error)
	ComputeStatistics(ctx context.Context) (analytics.Statistics, error)
}

// ReportCLI prints analytics and statistics for operators.
type ReportCLI struct {
	analytics Analytics
}

// NewReportCLI constructs the helper around an analytics service.
func NewReportCLI(svc Analytics) (*ReportCLI, error) {
	if svc == nil {
		return nil, errors.New("report cli: analytics service required")
	}
	return &ReportCLI{analytics: svc}, nil
}

// AnalyticsOptions defines the flags of the analytics command. Dates are
// YYYY-MM-DD; Currency takes a symbol or ISO code.
type AnalyticsOptions struct {
	From     string
	To       string
	Interval string
	Currency string
	View     string
	Format   string
	Stdout   io.Writer
	Stderr   io.Writer
}

// StatisticsOptions defines the flags of the stats command.
type StatisticsOptions struct {
	Format string
	Stdout io.Writer
	Stderr io.Writer
}

// AnalyticsCommand computes the aggregation and prints it. It returns the
// process exit code.
func (c *ReportCLI) AnalyticsCommand(ctx context.Context, opts AnalyticsOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	filter, err := parseFilter(opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "analytics: %v\n", err)
		return 1
	}
	result, err := c.analytics.ComputeAnalytics(ctx, filter)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "analytics: %v\n", err)
		return 1
	}

	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		err = writeJSON(stdout, result)
	case FormatCSV:
		err = writeAnalyticsCSV(stdout, result, opts.View)
	case "", FormatText:
		renderAnalyticsHuman(stdout, result)
	default:
		err = fmt.Errorf("unknown format %q", opts.Format)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "analytics: %v\n", err)
		return 1
	}
	return 0
}

// StatisticsCommand prints the ledger-wide statistics.
func (c *ReportCLI) StatisticsCommand(ctx context.Context, opts StatisticsOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	stats, err := c.analytics.ComputeStatistics(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "stats: %v\n", err)
		return 1
	}
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		err = writeJSON(stdout, stats)
	case FormatCSV:
		err = export.WritePaymentsCSV(stdout, stats.PaymentDetails)
	case "", FormatText:
		renderStatisticsHuman(stdout, stats)
	default:
		err = fmt.Errorf("unknown format %q", opts.Format)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "stats: %v\n", err)
		return 1
	}
	return 0
}

func streams(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

func parseFilter(opts AnalyticsOptions) (analytics.Filter, error) {
	var filter analytics.Filter
	for _, bound := range []struct {
		flag  string
		value string
		dest  **time.Time
	}{{"--from", opts.From, &filter.From}, {"--to", opts.To, &filter.To}} {
		if strings.TrimSpace(bound.value) == "" {
			continue
		}
		d, err := dates.ParseComparable(bound.value)
		if err != nil {
			return filter, fmt.Errorf("invalid %s %q (expected YYYY-MM-DD)", bound.flag, bound.value)
		}
		t := d.Time()
		*bound.dest = &t
	}
	interval, err := dates.ParseInterval(opts.Interval)
	if err != nil {
		return filter, fmt.Errorf("invalid --interval %q (daily, weekly or monthly)", opts.Interval)
	}
	filter.Interval = interval
	currency, ok := ledger.ParseCurrency(opts.Currency)
	if !ok {
		return filter, fmt.Errorf("unsupported --currency %q", opts.Currency)
	}
	filter.Currency = currency
	return filter, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAnalyticsCSV(out io.Writer, result analytics.Result, view string) error {
	switch strings.ToLower(view) {
	case "summary":
		return export.WriteSummaryCSV(out, result.Summary)
	case "clients":
		return export.WriteClientsCSV(out, result.ClientInvoiceData)
	case "", "series":
		return export.WriteTimeSeriesCSV(out, result.TimeSeries)
	default:
		return fmt.Errorf("unknown view %q (summary, series or clients)", view)
	}
}

func renderAnalyticsHuman(out io.Writer, result analytics.Result) {
	s := result.Summary
	currency := s.Currency.Code()
	if currency == "" {
		currency = "none"
	}
	_, _ = fmt.Fprintf(out, "Analytics %s to %s, %s, currency %s\n", orOpen(s.DateRange.From), orOpen(s.DateRange.To), s.Interval, currency)
	_, _ = fmt.Fprintf(out, "Item revenue %.2f over %d invoice(s), paid %.2f, outstanding %.2f, average %.2f\n",
		s.TotalItemRevenue, s.TotalInvoices, s.TotalPaidAmount, s.EstimatedOutstanding, s.AverageItemRevenuePerInvoice)
	if len(result.TimeSeries) == 0 {
		_, _ = fmt.Fprintln(out, "No invoices in range.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "Interval\tRevenue\tInvoices\tPaid\t")
	for _, p := range result.TimeSeries {
		_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%d\t%.2f\t\n", p.IntervalLabel, p.TotalItemRevenue, p.InvoiceCount, p.TotalPaidAmount)
	}
	_ = tw.Flush()
	if len(result.ClientInvoiceData) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "Clients:")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range result.ClientInvoiceData {
		_, _ = fmt.Fprintf(tw, " - %s\t%s\t%s\t%.2f invoiced\t%.2f unpaid\n", c.IntervalLabel, c.ClientName, c.ClientEmail, c.TotalInvoiceAmount, c.TotalUnpaidAmount)
	}
	_ = tw.Flush()
}

func renderStatisticsHuman(out io.Writer, stats analytics.Statistics) {
	_, _ = fmt.Fprintf(out, "%d invoice(s) in the ledger\n", stats.TotalInvoices)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Currency\tPaid\tUnpaid")
	for _, d := range stats.PaymentDetails {
		label := d.Code
		if label == "" {
			label = "none"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", label, d.PaidAmount, d.UnpaidAmount)
	}
	_ = tw.Flush()
	if len(stats.RecentInvoices) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "Recent:")
	for _, e := range stats.RecentInvoices {
		_, _ = fmt.Fprintf(out, " - %s %s %s\n", e.InvoiceNumber, e.Date, e.Amount)
	}
}

func orOpen(v *string) string {
	if v == nil {
		return "open"
	}
	return *v
}
