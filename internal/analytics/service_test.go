package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/ledger"
	"github.com/invoicely/invoicely/internal/platform/db"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLedger(t *testing.T) *ledger.Store {
	t.Helper()
	ctx := context.Background()
	handle, err := db.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	store := ledger.NewSQLiteStore(handle)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func invoice(number, date string, currency ledger.Currency, payed float64, items ...ledger.Item) ledger.NewInvoice {
	return ledger.NewInvoice{
		Sender:    ledger.Sender{Name: "Invoicely Ltd", Address: "1 Market Street"},
		Recipient: ledger.Recipient{Name: "Acme Corp", Address: "42 Harbour Road", Email: "ap@acme.test"},
		Info:      ledger.Info{InvoiceNumber: number, Date: date, DueDate: date},
		Items:     items,
		Payed:     payed,
		Currency:  currency,
	}
}

func seed(t *testing.T, store *ledger.Store, invoices ...ledger.NewInvoice) {
	t.Helper()
	for _, inv := range invoices {
		if _, err := store.Create(context.Background(), inv); err != nil {
			t.Fatalf("create %s: %v", inv.Info.InvoiceNumber, err)
		}
	}
}

func day(year int, month time.Month, d int) *time.Time {
	t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSingleInvoiceTotalsAndMonthlyBucket(t *testing.T) {
	store := newLedger(t)
	inv := invoice("INV-A", "15/03/2024", ledger.Dollar, 10, ledger.Item{Name: "Widget", Quantity: 2, Price: 10})
	inv.TaxPercentage = 10
	inv.Shipping = 5
	seed(t, store, inv)

	svc := NewService(store, nil, nil, quietLogger())
	result, err := svc.ComputeAnalytics(context.Background(), Filter{Currency: ledger.Dollar})
	if err != nil {
		t.Fatalf("compute analytics: %v", err)
	}
	if len(result.TimeSeries) != 1 {
		t.Fatalf("expected one bucket, got %+v", result.TimeSeries)
	}
	point := result.TimeSeries[0]
	if point.IntervalLabel != "2024-03" || point.TotalItemRevenue != 20 || point.InvoiceCount != 1 {
		t.Fatalf("unexpected bucket %+v", point)
	}
	if point.TotalPaidAmount != 10 {
		t.Fatalf("expected the whole paid total on the only bucket, got %v", point.TotalPaidAmount)
	}
	s := result.Summary
	if s.TotalPaidAmount != 10 || s.EstimatedOutstanding != 10 || s.AverageItemRevenuePerInvoice != 20 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Interval != dates.Monthly || s.Currency != ledger.Dollar || s.DateRange.From != nil || s.DateRange.To != nil {
		t.Fatalf("unexpected summary echo %+v", s)
	}
	if len(result.ClientInvoiceData) != 1 || result.ClientInvoiceData[0].TotalUnpaidAmount != 10 {
		t.Fatalf("unexpected clients %+v", result.ClientInvoiceData)
	}

	stats, err := svc.ComputeStatistics(context.Background())
	if err != nil {
		t.Fatalf("compute statistics: %v", err)
	}
	if len(stats.RecentInvoices) != 1 || stats.RecentInvoices[0].Amount != "27.00" {
		t.Fatalf("unexpected recent invoices %+v", stats.RecentInvoices)
	}
}

func TestPaymentDetailsPerCurrency(t *testing.T) {
	store := newLedger(t)
	unpaid := invoice("INV-B1", "02/03/2024", ledger.Euro, 0, ledger.Item{Name: "Widget", Quantity: 2, Price: 10})
	unpaid.TaxPercentage = 10
	unpaid.Shipping = 5
	settled := invoice("INV-B2", "20/03/2024", ledger.Euro, 27, ledger.Item{Name: "Widget", Quantity: 2, Price: 10})
	settled.TaxPercentage = 10
	settled.Shipping = 5
	seed(t, store, unpaid, settled)

	svc := NewService(store, nil, nil, quietLogger())
	stats, err := svc.ComputeStatistics(context.Background())
	if err != nil {
		t.Fatalf("compute statistics: %v", err)
	}
	if stats.TotalInvoices != 2 {
		t.Fatalf("expected 2 invoices, got %d", stats.TotalInvoices)
	}
	var euro *PaymentDetail
	for i := range stats.PaymentDetails {
		if stats.PaymentDetails[i].Currency == ledger.Euro {
			euro = &stats.PaymentDetails[i]
		}
	}
	if euro == nil {
		t.Fatalf("missing euro entry in %+v", stats.PaymentDetails)
	}
	if euro.PaidAmount != 27 || euro.UnpaidAmount != 27 || euro.Code != "EUR" {
		t.Fatalf("unexpected euro detail %+v", euro)
	}
	if last := stats.PaymentDetails[len(stats.PaymentDetails)-1]; last.Currency != ledger.Euro {
		t.Fatalf("expected the highest paid currency last, got %+v", stats.PaymentDetails)
	}
}

func TestInvoiceWithoutItemsExcludedFromRevenue(t *testing.T) {
	store := newLedger(t)
	seed(t, store,
		invoice("INV-C1", "15/03/2024", ledger.Dollar, 1, ledger.Item{Name: "Widget", Quantity: 1, Price: 10}),
		invoice("INV-C2", "01/05/2024", ledger.Dollar, 4),
	)

	svc := NewService(store, nil, nil, quietLogger())
	result, err := svc.ComputeAnalytics(context.Background(), Filter{Currency: ledger.Dollar})
	if err != nil {
		t.Fatalf("compute analytics: %v", err)
	}
	if len(result.TimeSeries) != 1 || result.TimeSeries[0].IntervalLabel != "2024-03" {
		t.Fatalf("zero-item invoice leaked into series: %+v", result.TimeSeries)
	}
	if result.Summary.TotalInvoices != 1 {
		t.Fatalf("expected 1 invoice counted, got %d", result.Summary.TotalInvoices)
	}
	if result.Summary.TotalPaidAmount != 5 {
		t.Fatalf("paid total covers invoices without items, got %v", result.Summary.TotalPaidAmount)
	}

	stats, err := svc.ComputeStatistics(context.Background())
	if err != nil {
		t.Fatalf("compute statistics: %v", err)
	}
	if len(stats.RecentInvoices) != 1 || stats.RecentInvoices[0].InvoiceNumber != "INV-C1" {
		t.Fatalf("unexpected recent invoices %+v", stats.RecentInvoices)
	}
}

func TestSentinelCurrencyMatchesExactly(t *testing.T) {
	store := newLedger(t)
	seed(t, store,
		invoice("INV-D1", "15/03/2024", ledger.NoCurrency, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 3}),
		invoice("INV-D2", "15/03/2024", ledger.Dollar, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 50}),
	)

	svc := NewService(store, nil, nil, quietLogger())
	result, err := svc.ComputeAnalytics(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("compute analytics: %v", err)
	}
	if result.Summary.TotalItemRevenue != 3 || result.Summary.TotalInvoices != 1 {
		t.Fatalf("sentinel filter matched other currencies: %+v", result.Summary)
	}

	euro, err := svc.ComputeAnalytics(context.Background(), Filter{Currency: ledger.Euro})
	if err != nil {
		t.Fatalf("compute analytics: %v", err)
	}
	if len(euro.TimeSeries) != 0 || euro.Summary.TotalInvoices != 0 {
		t.Fatalf("expected nothing for euro, got %+v", euro)
	}
}

func TestSeriesConservesRevenueAndPaid(t *testing.T) {
	store := newLedger(t)
	seed(t, store,
		invoice("INV-1", "02/01/2024", ledger.Rupee, 3, ledger.Item{Name: "Widget", Quantity: 3, Price: 1.1}),
		invoice("INV-2", "09/01/2024", ledger.Rupee, 7.5, ledger.Item{Name: "Widget", Quantity: 1, Price: 12.25}, ledger.Item{Name: "Gadget", Quantity: 2, Price: 0.35}),
		invoice("INV-3", "28/02/2024", ledger.Rupee, 0, ledger.Item{Name: "Widget", Quantity: 4, Price: 9.99}),
		invoice("INV-4", "01/03/2024", ledger.Rupee, 11),
	)

	svc := NewService(store, nil, nil, quietLogger())
	for _, iv := range []dates.Interval{dates.Daily, dates.Weekly, dates.Monthly} {
		result, err := svc.ComputeAnalytics(context.Background(), Filter{Interval: iv, Currency: ledger.Rupee})
		if err != nil {
			t.Fatalf("%s: compute analytics: %v", iv, err)
		}
		var revenue, paid float64
		for i, p := range result.TimeSeries {
			revenue += p.TotalItemRevenue
			paid += p.TotalPaidAmount
			if i > 0 && p.IntervalLabel <= result.TimeSeries[i-1].IntervalLabel {
				t.Fatalf("%s: labels not strictly ascending %+v", iv, result.TimeSeries)
			}
		}
		if math.Abs(revenue-result.Summary.TotalItemRevenue) > 1e-6 {
			t.Fatalf("%s: revenue %v != summary %v", iv, revenue, result.Summary.TotalItemRevenue)
		}
		if math.Abs(paid-result.Summary.TotalPaidAmount) > 1e-6 {
			t.Fatalf("%s: paid %v != summary %v", iv, paid, result.Summary.TotalPaidAmount)
		}
		if result.Summary.TotalPaidAmount != 21.5 {
			t.Fatalf("%s: expected paid 21.5, got %v", iv, result.Summary.TotalPaidAmount)
		}
	}
}

func TestDateBoundsAreInclusive(t *testing.T) {
	store := newLedger(t)
	seed(t, store,
		invoice("INV-1", "29/02/2024", ledger.Dollar, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 1}),
		invoice("INV-2", "01/03/2024", ledger.Dollar, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 2}),
		invoice("INV-3", "31/03/2024", ledger.Dollar, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 4}),
		invoice("INV-4", "01/04/2024", ledger.Dollar, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 8}),
	)

	svc := NewService(store, nil, nil, quietLogger())
	result, err := svc.ComputeAnalytics(context.Background(), Filter{
		From:     day(2024, time.March, 1),
		To:       day(2024, time.March, 31),
		Currency: ledger.Dollar,
	})
	if err != nil {
		t.Fatalf("compute analytics: %v", err)
	}
	if result.Summary.TotalItemRevenue != 6 {
		t.Fatalf("expected 6, got %v", result.Summary.TotalItemRevenue)
	}
	if *result.Summary.DateRange.From != "2024-03-01" || *result.Summary.DateRange.To != "2024-03-31" {
		t.Fatalf("unexpected date range %+v", result.Summary.DateRange)
	}
}

func TestUnparseableDatesAreExcludedAndCounted(t *testing.T) {
	store := newLedger(t)
	seed(t, store,
		invoice("INV-1", "15/03/2024", ledger.Dollar, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 5}),
		invoice("INV-2", "2024-03-16", ledger.Dollar, 0, ledger.Item{Name: "Widget", Quantity: 1, Price: 50}),
	)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	svc := NewService(store, nil, metrics, quietLogger())
	result, err := svc.ComputeAnalytics(context.Background(), Filter{Currency: ledger.Dollar})
	if err != nil {
		t.Fatalf("compute analytics: %v", err)
	}
	if result.Summary.TotalItemRevenue != 5 {
		t.Fatalf("expected malformed row excluded, got %v", result.Summary.TotalItemRevenue)
	}
	if got := testutil.ToFloat64(metrics.excluded.WithLabelValues(QueryInvoiceRevenue)); got != 1 {
		t.Fatalf("expected 1 excluded revenue row, got %v", got)
	}

	bounded, err := svc.ComputeAnalytics(context.Background(), Filter{From: day(2000, time.January, 1), Currency: ledger.Dollar})
	if err != nil {
		t.Fatalf("compute analytics: %v", err)
	}
	if bounded.Summary.TotalItemRevenue != 5 {
		t.Fatalf("malformed date matched a date bound: %+v", bounded.Summary)
	}

	if again := NewMetrics(registry); again.excluded != metrics.excluded {
		t.Fatalf("expected collectors to be shared on re-registration")
	}
}

type stubRepo struct {
	revenueCalls int
	statsCalls   int
	failOn       string
	err          error
	rows         []ledger.InvoiceRevenue
}

func (s *stubRepo) fail(query string) error {
	if s.failOn == query {
		return s.err
	}
	return nil
}

func (s *stubRepo) InvoiceRevenue(ctx context.Context, filter ledger.Filter) ([]ledger.InvoiceRevenue, error) {
	s.revenueCalls++
	return s.rows, s.fail(QueryInvoiceRevenue)
}

func (s *stubRepo) SumPayed(ctx context.Context, filter ledger.Filter) (float64, error) {
	return 0, s.fail(QuerySumPayed)
}

func (s *stubRepo) ClientRevenue(ctx context.Context, filter ledger.Filter) ([]ledger.ClientRevenue, error) {
	return nil, s.fail(QueryClientRevenue)
}

func (s *stubRepo) RecentInvoices(ctx context.Context, limit int) ([]ledger.RecentInvoice, error) {
	return nil, s.fail(QueryRecentInvoices)
}

func (s *stubRepo) InvoiceCount(ctx context.Context) (int64, error) {
	s.statsCalls++
	return 0, s.fail(QueryInvoiceCount)
}

func (s *stubRepo) InvoiceFinancials(ctx context.Context) ([]ledger.InvoiceFinancials, error) {
	return nil, s.fail(QueryInvoiceFinancials)
}

func TestFromAfterToIsEmpty(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil, quietLogger())
	result, err := svc.ComputeAnalytics(context.Background(), Filter{
		From:     day(2024, time.April, 2),
		To:       day(2024, time.April, 1),
		Currency: ledger.Dollar,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if repo.revenueCalls != 0 {
		t.Fatalf("expected no store reads, got %d", repo.revenueCalls)
	}
	if len(result.TimeSeries) != 0 || len(result.ClientInvoiceData) != 0 || result.Summary.TotalInvoices != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.TimeSeries == nil || result.ClientInvoiceData == nil {
		t.Fatalf("expected empty slices rather than nil")
	}
}

func TestInvalidIntervalIsValidationError(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, quietLogger())
	_, err := svc.ComputeAnalytics(context.Background(), Filter{Interval: "yearly"})
	if !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStoreFailureAbortsWithStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	for _, query := range []string{QueryInvoiceRevenue, QuerySumPayed, QueryClientRevenue} {
		svc := NewService(&stubRepo{failOn: query, err: cause}, nil, nil, quietLogger())
		result, err := svc.ComputeAnalytics(context.Background(), Filter{Currency: ledger.Dollar})
		var storeErr *StoreError
		if !errors.As(err, &storeErr) {
			t.Fatalf("%s: expected StoreError, got %v", query, err)
		}
		if storeErr.Query != query || !errors.Is(err, cause) {
			t.Fatalf("%s: unexpected store error %v", query, storeErr)
		}
		if result.TimeSeries != nil {
			t.Fatalf("%s: expected no partial result", query)
		}
	}
	for _, query := range []string{QueryInvoiceCount, QueryInvoiceFinancials, QueryRecentInvoices} {
		svc := NewService(&stubRepo{failOn: query, err: cause}, nil, nil, quietLogger())
		_, err := svc.ComputeStatistics(context.Background())
		var storeErr *StoreError
		if !errors.As(err, &storeErr) || storeErr.Query != query {
			t.Fatalf("%s: expected StoreError, got %v", query, err)
		}
	}
}

func newCachedService(t *testing.T, repo Repository) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	return NewService(repo, cache, nil, quietLogger()), cache
}

func TestComputeAnalyticsCaches(t *testing.T) {
	repo := &stubRepo{rows: []ledger.InvoiceRevenue{{InvoiceID: 1, Date: "15/03/2024", Revenue: 20}}}
	svc, cache := newCachedService(t, repo)
	ctx := context.Background()
	filter := Filter{From: day(2024, time.January, 1), Currency: ledger.Dollar}

	first, err := svc.ComputeAnalytics(ctx, filter)
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := svc.ComputeAnalytics(ctx, filter)
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if repo.revenueCalls != 1 {
		t.Fatalf("expected cached second call, got %d store reads", repo.revenueCalls)
	}
	if second.Summary.TotalItemRevenue != first.Summary.TotalItemRevenue || *second.Summary.DateRange.From != "2024-01-01" {
		t.Fatalf("cached result differs: %+v vs %+v", first.Summary, second.Summary)
	}

	if _, err := svc.ComputeAnalytics(ctx, Filter{Currency: ledger.Euro}); err != nil {
		t.Fatalf("other filter: %v", err)
	}
	if repo.revenueCalls != 2 {
		t.Fatalf("expected a distinct key per filter, got %d store reads", repo.revenueCalls)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := svc.ComputeAnalytics(ctx, filter); err != nil {
		t.Fatalf("after invalidate: %v", err)
	}
	if repo.revenueCalls != 3 {
		t.Fatalf("expected recompute after invalidation, got %d store reads", repo.revenueCalls)
	}
}

func TestComputeStatisticsCachesAndSkipsFailures(t *testing.T) {
	repo := &stubRepo{failOn: QueryInvoiceCount, err: errors.New("boom")}
	svc, _ := newCachedService(t, repo)
	ctx := context.Background()

	if _, err := svc.ComputeStatistics(ctx); err == nil {
		t.Fatalf("expected failure")
	}
	repo.failOn = ""
	if _, err := svc.ComputeStatistics(ctx); err != nil {
		t.Fatalf("expected failures not to be cached, got %v", err)
	}
	if _, err := svc.ComputeStatistics(ctx); err != nil {
		t.Fatalf("cached statistics: %v", err)
	}
	if repo.statsCalls != 2 {
		t.Fatalf("expected 2 store reads, got %d", repo.statsCalls)
	}
}
