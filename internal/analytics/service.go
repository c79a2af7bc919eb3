package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/ledger"
)

// Repository is the ledger read contract the engines rely on. *ledger.Store
// satisfies it for both dialects.
type Repository interface {
	InvoiceRevenue(ctx context.Context, filter ledger.Filter) ([]ledger.InvoiceRevenue, error)
	SumPayed(ctx context.Context, filter ledger.Filter) (float64, error)
	ClientRevenue(ctx context.Context, filter ledger.Filter) ([]ledger.ClientRevenue, error)
	RecentInvoices(ctx context.Context, limit int) ([]ledger.RecentInvoice, error)
	InvoiceCount(ctx context.Context) (int64, error)
	InvoiceFinancials(ctx context.Context) ([]ledger.InvoiceFinancials, error)
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo    Repository
	cache   *Cache
	metrics *Metrics
	logger  *slog.Logger
}

// NewService wires a Repository with a Cache helper. cache and metrics may be nil.
func NewService(repo Repository, cache *Cache, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// ComputeAnalytics aggregates the filtered ledger into a summary, a time
// series and a per-client rollup.
func (s *Service) ComputeAnalytics(ctx context.Context, filter Filter) (Result, error) {
	if filter.Interval == "" {
		filter.Interval = dates.DefaultInterval
	}
	if !filter.Interval.Valid() {
		return Result{}, &ledger.ValidationError{Fields: map[string]string{"interval": "must be daily, weekly or monthly"}}
	}
	if !filter.Currency.Supported() {
		return Result{}, &ledger.ValidationError{Fields: map[string]string{"currency": "is not a supported currency"}}
	}

	scope := ledger.Filter{Currency: filter.Currency}
	var fromDate, toDate dates.Date
	if filter.From != nil {
		fromDate = dates.FromTime(*filter.From)
		scope.From = fromDate.Comparable()
	}
	if filter.To != nil {
		toDate = dates.FromTime(*filter.To)
		scope.To = toDate.Comparable()
	}

	result := emptyResult(filter, scope)
	if filter.From != nil && filter.To != nil && fromDate.Compare(toDate) > 0 {
		return result, nil
	}

	loader := func(ctx context.Context) (any, error) {
		return s.computeAnalytics(ctx, filter.Interval, scope, result)
	}
	key, err := s.cache.BuildKey(ctx, keyAnalytics(filter, scope.From, scope.To))
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
		return s.computeAnalytics(ctx, filter.Interval, scope, result)
	}
	var out Result
	if err := s.cache.FetchJSON(ctx, key, &out, loader); err != nil {
		return Result{}, err
	}
	return out, nil
}

func (s *Service) computeAnalytics(ctx context.Context, interval dates.Interval, scope ledger.Filter, result Result) (Result, error) {
	defer s.metrics.observe("analytics", time.Now())

	revenueRows, err := s.repo.InvoiceRevenue(ctx, scope)
	if err != nil {
		return Result{}, &StoreError{Query: QueryInvoiceRevenue, Err: err}
	}
	paid, err := s.repo.SumPayed(ctx, scope)
	if err != nil {
		return Result{}, &StoreError{Query: QuerySumPayed, Err: err}
	}
	clientRows, err := s.repo.ClientRevenue(ctx, scope)
	if err != nil {
		return Result{}, &StoreError{Query: QueryClientRevenue, Err: err}
	}

	series, skipped := bucketRevenue(revenueRows, interval)
	s.excluded(QueryInvoiceRevenue, skipped)
	clients, skipped := rollupClients(clientRows, interval)
	s.excluded(QueryClientRevenue, skipped)

	paidTotal := decimal.NewFromFloat(paid)
	summary := summarize(series, paidTotal)
	summary.DateRange = result.Summary.DateRange
	summary.Interval = result.Summary.Interval
	summary.Currency = result.Summary.Currency

	return Result{
		Summary:           summary,
		TimeSeries:        allocatePaid(series, paidTotal),
		ClientInvoiceData: clients,
	}, nil
}

func (s *Service) excluded(query string, n int) {
	if n == 0 {
		return
	}
	s.metrics.addExcluded(query, n)
	s.logger.Warn("ledger rows with unparseable dates excluded", slog.String("query", query), slog.Int("rows", n))
}

func emptyResult(filter Filter, scope ledger.Filter) Result {
	var dr DateRange
	if scope.From != "" {
		from := scope.From
		dr.From = &from
	}
	if scope.To != "" {
		to := scope.To
		dr.To = &to
	}
	return Result{
		Summary: Summary{
			DateRange: dr,
			Interval:  filter.Interval,
			Currency:  filter.Currency,
		},
		TimeSeries:        []TimeSeriesPoint{},
		ClientInvoiceData: []ClientInvoiceData{},
	}
}

// ComputeStatistics rolls up the whole ledger: invoice count, paid and
// unpaid totals per currency, and the most recent invoices.
func (s *Service) ComputeStatistics(ctx context.Context) (Statistics, error) {
	key, err := s.cache.BuildKey(ctx, keyStatistics())
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
		return s.computeStatistics(ctx)
	}
	var out Statistics
	loader := func(ctx context.Context) (any, error) {
		return s.computeStatistics(ctx)
	}
	if err := s.cache.FetchJSON(ctx, key, &out, loader); err != nil {
		return Statistics{}, err
	}
	return out, nil
}

func (s *Service) computeStatistics(ctx context.Context) (Statistics, error) {
	defer s.metrics.observe("statistics", time.Now())

	count, err := s.repo.InvoiceCount(ctx)
	if err != nil {
		return Statistics{}, &StoreError{Query: QueryInvoiceCount, Err: err}
	}
	financials, err := s.repo.InvoiceFinancials(ctx)
	if err != nil {
		return Statistics{}, &StoreError{Query: QueryInvoiceFinancials, Err: err}
	}
	recent, err := s.repo.RecentInvoices(ctx, RecentLimit)
	if err != nil {
		return Statistics{}, &StoreError{Query: QueryRecentInvoices, Err: err}
	}
	return Statistics{
		TotalInvoices:  count,
		PaymentDetails: paymentDetails(financials),
		RecentInvoices: recentEntries(recent),
	}, nil
}

// Invalidate drops every cached result.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}
