package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/invoicely/invoicely/internal/analytics"
	analytichttp "github.com/invoicely/invoicely/internal/analytics/http"
	"github.com/invoicely/invoicely/internal/app"
	"github.com/invoicely/invoicely/internal/ledger"
	ledgerhttp "github.com/invoicely/invoicely/internal/ledger/http"
	"github.com/invoicely/invoicely/internal/observability"
	"github.com/invoicely/invoicely/internal/platform/db"
	"github.com/invoicely/invoicely/jobs"
)

const acmeInvoice = `{
	"senderInfo": {"name": "Invoicely Ltd", "address": "1 Market Street"},
	"recipientInfo": {"name": "Acme Corp", "address": "42 Harbour Road", "email": "ap@acme.test"},
	"invoiceInfo": {"invoiceNumber": "INV-1", "orderId": "PO-1", "date": "15/03/2024", "dueDate": "14/04/2024"},
	"items": [{"name": "Widget", "quantity": 2, "price": 10}],
	"discountAmount": 0, "taxPercentage": 10, "shipping": 5, "payed": %PAYED%,
	"currency": "$"
}`

func invoiceBody(payed string) string {
	return strings.Replace(acmeInvoice, "%PAYED%", payed, 1)
}

type stack struct {
	router http.Handler
	redis  *miniredis.Miniredis
}

func newStack(t *testing.T) stack {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handle, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	store := ledger.NewSQLiteStore(handle)
	require.NoError(t, store.Migrate(ctx))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	metrics := observability.NewMetrics()
	cache := analytics.NewCache(client, time.Minute)
	analyticsService := analytics.NewService(store, cache, analytics.NewMetrics(metrics.Registerer()), logger)
	ledgerService := ledger.NewService(store, jobs.NewCacheRefresher(cache, nil, 0, logger), logger)
	settings := ledger.NewSettingsService(store, logger)

	cfg := &app.Config{
		AppRequestTimeout: 5 * time.Second,
		RequestsPerMinute: 1000,
		LedgerDriver:      app.DriverSQLite,
		SQLitePath:        ":memory:",
		AnalyticsCacheTTL: time.Minute,
	}
	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		LedgerHandler:    ledgerhttp.NewHandler(logger, ledgerService, ledger.NewDraftStore(client, time.Hour).WithDefaults(settings)).WithSettings(settings),
		AnalyticsHandler: analytichttp.NewHandler(logger, analyticsService, analytics.NewSequencer()),
		JobHandler:       jobs.NewHandler(nil, nil, logger),
	})
	return stack{router: router, redis: mr}
}

func (s stack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s stack) analytics(t *testing.T, query string) analytics.Result {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/analytics/?"+query, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result analytics.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestWritesInvalidateCachedAnalytics(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/api/invoices/", invoiceBody("10"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.EqualValues(t, 1, created.ID)

	result := s.analytics(t, "currency=USD")
	require.EqualValues(t, 1, result.Summary.TotalInvoices)
	require.InDelta(t, 20, result.Summary.TotalItemRevenue, 1e-9)
	require.InDelta(t, 10, result.Summary.TotalPaidAmount, 1e-9)
	require.Len(t, result.ClientInvoiceData, 1)
	require.Equal(t, "Acme Corp", result.ClientInvoiceData[0].ClientName)

	cachedKeys := len(s.redis.Keys())
	_ = s.analytics(t, "currency=USD")
	require.Equal(t, cachedKeys, len(s.redis.Keys()), "a repeated read is served from the cache")

	rec = s.do(t, http.MethodPut, "/api/invoices/1", invoiceBody("27"))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	result = s.analytics(t, "currency=USD")
	require.InDelta(t, 27, result.Summary.TotalPaidAmount, 1e-9, "update must invalidate the cached result")
	require.InDelta(t, -7, result.Summary.EstimatedOutstanding, 1e-9)

	empty := s.analytics(t, "currency=EUR")
	require.Zero(t, empty.Summary.TotalInvoices)
	require.NotNil(t, empty.TimeSeries)
}

func TestDraftCommitFeedsStatistics(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/api/invoices/", invoiceBody("0"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/analytics/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats analytics.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.EqualValues(t, 1, stats.TotalInvoices)

	rec = s.do(t, http.MethodPost, "/api/drafts/?from=1", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft ledger.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	require.Equal(t, "INV-1", draft.Invoice.Info.InvoiceNumber)

	patch := `{"invoiceInfo": {"invoiceNumber": "INV-2", "orderId": "PO-2", "date": "02/04/2024", "dueDate": "02/05/2024"}}`
	rec = s.do(t, http.MethodPut, "/api/drafts/"+draft.ID, patch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/drafts/"+draft.ID+"/commit", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/analytics/dashboard?currency=USD", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dashboard struct {
		Statistics analytics.Statistics `json:"statistics"`
		Analytics  analytics.Result     `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dashboard))
	require.EqualValues(t, 2, dashboard.Statistics.TotalInvoices)
	require.Len(t, dashboard.Analytics.TimeSeries, 2)
	require.Equal(t, "2024-03", dashboard.Analytics.TimeSeries[0].IntervalLabel)
	require.Equal(t, "2024-04", dashboard.Analytics.TimeSeries[1].IntervalLabel)

	rec = s.do(t, http.MethodGet, "/api/drafts/"+draft.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code, "a committed draft is discarded")

	rec = s.do(t, http.MethodDelete, "/api/invoices/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	result := s.analytics(t, "currency=USD")
	require.EqualValues(t, 1, result.Summary.TotalInvoices)
}

func TestExportAndMetricsEndToEnd(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodPost, "/api/invoices/", invoiceBody("5"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/analytics/export.csv?currency=USD&view=summary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	require.Contains(t, rec.Body.String(), "Item Revenue,20.00")

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `invoicely_http_requests_total{code="201",route="/api/invoices/"} 1`)
	require.Contains(t, body, `invoicely_analytics_compute_duration_seconds_count{operation="analytics"} 1`)
}

func TestSavedSettingsPrefillNewDrafts(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPut, "/api/settings/", `{"defaultSenderName": "Invoicely Ltd", "defaultSenderAddress": "1 Market Street", "logoImageUrl": "logo://brand"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"defaultSenderName": "Invoicely Ltd", "defaultSenderAddress": "1 Market Street", "logoImageUrl": "logo://brand"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/settings/", `{"defaultSenderEmail": "not-an-email"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/drafts/", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft ledger.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	require.Equal(t, "Invoicely Ltd", draft.Invoice.Sender.Name)
	require.Equal(t, "1 Market Street", draft.Invoice.Sender.Address)
	require.Equal(t, "logo://brand", draft.Invoice.LogoImg)
}
