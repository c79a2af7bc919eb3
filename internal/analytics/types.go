package analytics

import (
	"time"

	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/ledger"
)

// Filter scopes ComputeAnalytics. Nil bounds are open. Currency is matched
// exactly; the zero value selects invoices stored without a currency.
type Filter struct {
	From     *time.Time
	To       *time.Time
	Interval dates.Interval
	Currency ledger.Currency
}

// DateRange echoes the applied bounds as YYYY-MM-DD, or null when open.
type DateRange struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

// Summary aggregates the whole filtered ledger.
type Summary struct {
	TotalItemRevenue             float64         `json:"totalItemRevenue"`
	TotalInvoices                int64           `json:"totalInvoices"`
	TotalPaidAmount              float64         `json:"totalPaidAmount"`
	EstimatedOutstanding         float64         `json:"estimatedOutstanding"`
	AverageItemRevenuePerInvoice float64         `json:"averageItemRevenuePerInvoice"`
	DateRange                    DateRange       `json:"dateRange"`
	Interval                     dates.Interval  `json:"interval"`
	Currency                     ledger.Currency `json:"currency"`
}

// TimeSeriesPoint is one bucket of the series. TotalPaidAmount is the
// bucket's revenue-weighted share of the ledger paid total, not the sum of
// its own invoices' payments.
type TimeSeriesPoint struct {
	IntervalLabel    string  `json:"intervalLabel"`
	TotalItemRevenue float64 `json:"totalItemRevenue"`
	InvoiceCount     int64   `json:"invoiceCount"`
	TotalPaidAmount  float64 `json:"totalPaidAmount"`
}

// ClientInvoiceData rolls up one client within one bucket.
type ClientInvoiceData struct {
	IntervalLabel      string  `json:"intervalLabel"`
	ClientEmail        string  `json:"clientEmail"`
	ClientName         string  `json:"clientName"`
	TotalInvoiceAmount float64 `json:"totalInvoiceAmount"`
	TotalInvoices      int64   `json:"totalInvoices"`
	TotalPaidAmount    float64 `json:"totalPaidAmount"`
	TotalUnpaidAmount  float64 `json:"totalUnpaidAmount"`
}

// Result is the full analytics payload.
type Result struct {
	Summary           Summary             `json:"summary"`
	TimeSeries        []TimeSeriesPoint   `json:"timeSeries"`
	ClientInvoiceData []ClientInvoiceData `json:"clientInvoiceData"`
}

// PaymentDetail totals one currency.
type PaymentDetail struct {
	Currency     ledger.Currency `json:"currency"`
	Code         string          `json:"code,omitempty"`
	PaidAmount   float64         `json:"paidAmount"`
	UnpaidAmount float64         `json:"unpaidAmount"`
}

// Statistics is the ledger-wide rollup.
type Statistics struct {
	TotalInvoices  int64              `json:"totalInvoices"`
	PaymentDetails []PaymentDetail    `json:"paymentDetails"`
	RecentInvoices []ledger.ListEntry `json:"recentInvoices"`
}
