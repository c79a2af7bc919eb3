package analytics

import "fmt"

// Query names reported by StoreError.
const (
	QueryInvoiceRevenue    = "invoice_revenue"
	QuerySumPayed          = "sum_payed"
	QueryClientRevenue     = "client_revenue"
	QueryInvoiceCount      = "invoice_count"
	QueryInvoiceFinancials = "invoice_financials"
	QueryRecentInvoices    = "recent_invoices"
)

// StoreError reports the ledger read that aborted a computation.
type StoreError struct {
	Query string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("analytics: %s: %v", e.Query, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
