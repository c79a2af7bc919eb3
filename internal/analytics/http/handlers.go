package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/invoicely/invoicely/internal/analytics"
	"github.com/invoicely/invoicely/internal/analytics/export"
	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/ledger"
	"github.com/invoicely/invoicely/internal/platform/httpx"
)

const requestTimeout = 5 * time.Second

// SessionHeader carries the client session used to sequence requests.
const SessionHeader = "X-Client-Session"

// AnalyticsService defines the data contract used by the handler.
type AnalyticsService interface {
	ComputeAnalytics(ctx context.Context, filter analytics.Filter) (analytics.Result, error)
	ComputeStatistics(ctx context.Context) (analytics.Statistics, error)
}

// Handler serves the analytics JSON endpoints and CSV exports.
type Handler struct {
	logger    *slog.Logger
	service   AnalyticsService
	sequencer *analytics.Sequencer
	csvPool   sync.Pool
}

// NewHandler constructs the analytics HTTP handler. A nil sequencer disables
// per-session ordering.
func NewHandler(logger *slog.Logger, service AnalyticsService, sequencer *analytics.Sequencer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, sequencer: sequencer}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// Dashboard bundles statistics with analytics for one filter.
type Dashboard struct {
	Statistics analytics.Statistics `json:"statistics"`
	Analytics  analytics.Result     `json:"analytics"`
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.respond(w, "parse filter", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx, ticket := h.sequencer.Begin(ctx, r.Header.Get(SessionHeader))

	result, err := h.service.ComputeAnalytics(ctx, filter)
	if err := ticket.Finish(err); err != nil {
		h.respond(w, "compute analytics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := h.service.ComputeStatistics(ctx)
	if err != nil {
		h.respond(w, "compute statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.respond(w, "parse filter", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	ctx, ticket := h.sequencer.Begin(ctx, r.Header.Get(SessionHeader))

	data, err := h.loadDashboard(ctx, filter)
	if err := ticket.Finish(err); err != nil {
		h.respond(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) loadDashboard(ctx context.Context, filter analytics.Filter) (Dashboard, error) {
	var data Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := h.service.ComputeStatistics(ctx)
		if err != nil {
			return err
		}
		data.Statistics = stats
		return nil
	})

	g.Go(func() error {
		result, err := h.service.ComputeAnalytics(ctx, filter)
		if err != nil {
			return err
		}
		data.Analytics = result
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return data, nil
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.respond(w, "parse filter", err)
		return
	}
	view := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view")))
	if view == "" {
		view = "series"
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	switch view {
	case "payments":
		stats, err := h.service.ComputeStatistics(ctx)
		if err != nil {
			h.respond(w, "compute statistics", err)
			return
		}
		err = export.WritePaymentsCSV(buf, stats.PaymentDetails)
		if err != nil {
			h.respond(w, "write payments csv", err)
			return
		}
	case "summary", "series", "clients":
		result, err := h.service.ComputeAnalytics(ctx, filter)
		if err != nil {
			h.respond(w, "compute analytics", err)
			return
		}
		switch view {
		case "summary":
			err = export.WriteSummaryCSV(buf, result.Summary)
		case "series":
			err = export.WriteTimeSeriesCSV(buf, result.TimeSeries)
		default:
			err = export.WriteClientsCSV(buf, result.ClientInvoiceData)
		}
		if err != nil {
			h.respond(w, "write csv", err)
			return
		}
	default:
		h.respond(w, "parse filter", fieldError("view", "must be summary, series, clients or payments"))
		return
	}

	filename := fmt.Sprintf("invoice-analytics-%s.csv", view)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

// parseFilter reads from/to (YYYY-MM-DD), interval and currency. A missing
// currency selects invoices stored without one.
func parseFilter(r *http.Request) (analytics.Filter, error) {
	q := r.URL.Query()
	var filter analytics.Filter
	fields := make(map[string]string)

	for _, bound := range []struct {
		name string
		dest **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(q.Get(bound.name))
		if raw == "" {
			continue
		}
		d, err := dates.ParseComparable(raw)
		if err != nil {
			fields[bound.name] = "must be a YYYY-MM-DD date"
			continue
		}
		t := d.Time()
		*bound.dest = &t
	}

	interval, err := dates.ParseInterval(q.Get("interval"))
	if err != nil {
		fields["interval"] = "must be daily, weekly or monthly"
	}
	filter.Interval = interval

	currency, ok := ledger.ParseCurrency(q.Get("currency"))
	if !ok {
		fields["currency"] = "is not a supported currency"
	}
	filter.Currency = currency

	if len(fields) > 0 {
		return analytics.Filter{}, &ledger.ValidationError{Fields: fields}
	}
	return filter, nil
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	var storeErr *analytics.StoreError
	switch {
	case errors.As(err, &storeErr), errors.Is(err, context.DeadlineExceeded):
		h.logger.Error(op, slog.Any("error", err))
	default:
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func fieldError(field, msg string) error {
	return &ledger.ValidationError{Fields: map[string]string{field: msg}}
}
