package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicely/invoicely/internal/observability"
	"github.com/invoicely/invoicely/jobs"
)

func testConfig() *Config {
	return &Config{
		AppEnv:             "development",
		AppRequestTimeout:  time.Second,
		RequestsPerMinute:  3,
		LedgerDriver:       DriverSQLite,
		SQLitePath:         ":memory:",
		AnalyticsCacheTTL:  time.Minute,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	}
}

func newTestRouter(t *testing.T, cfg *Config) (http.Handler, *observability.Metrics, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Logger:     slog.New(slog.NewJSONHandler(&logs, nil)),
		Config:     cfg,
		Metrics:    metrics,
		JobHandler: jobs.NewHandler(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
	return router, metrics, &logs
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	router, _, logs := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &line))
	assert.Equal(t, "/healthz", line["path"])
	assert.EqualValues(t, 200, line["status"])
}

func TestUnknownRouteIsProblem(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestMetricsEndpointRecordsRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `invoicely_http_requests_total{code="200",route="/jobs/health"} 1`)
}

func TestCORSPreflightAllowsSessionHeader(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/analytics", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", sessionHeader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), strings.ToLower(sessionHeader)))
}

func TestGlobalRateLimit(t *testing.T) {
	router, _, _ := newTestRouter(t, testConfig())

	var last int
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestConfigValidation(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.validate())

	cfg.LedgerDriver = " Postgres "
	cfg.PGDSN = ""
	assert.Error(t, cfg.validate())
	assert.Equal(t, DriverPostgres, cfg.LedgerDriver)

	cfg = testConfig()
	cfg.LedgerDriver = "mysql"
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.AnalyticsCacheTTL = 0
	assert.Error(t, cfg.validate())

	var unset *Config
	assert.False(t, unset.IsProduction())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "ledger.db")
	t.Setenv("ANALYTICS_CACHE_TTL", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test,https://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ledger.db", cfg.SQLitePath)
	assert.Equal(t, 90*time.Second, cfg.AnalyticsCacheTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 120, cfg.RequestsPerMinute)
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"})
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	assert.Equal(t, "invoicely", line["service"])
}
