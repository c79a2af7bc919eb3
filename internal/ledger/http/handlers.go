package ledgerhttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/invoicely/invoicely/internal/ledger"
	"github.com/invoicely/invoicely/internal/platform/httpx"
)

const requestTimeout = 5 * time.Second

// InvoiceService is the ledger contract used by the handler.
type InvoiceService interface {
	Create(ctx context.Context, inv ledger.NewInvoice) (int64, error)
	Get(ctx context.Context, id int64) (ledger.Invoice, error)
	Update(ctx context.Context, id int64, inv ledger.NewInvoice) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, criteria ledger.Criteria) ([]ledger.ListEntry, error)
	Purge(ctx context.Context) error
}

// DraftService stores invoices under composition.
type DraftService interface {
	Start(ctx context.Context) (*ledger.Draft, error)
	Load(ctx context.Context, id string) (*ledger.Draft, error)
	Save(ctx context.Context, d *ledger.Draft) error
	Discard(ctx context.Context, id string) error
	Commit(ctx context.Context, id string, creator ledger.Creator) (int64, error)
}

// Handler serves the invoice and draft JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	invoices InvoiceService
	drafts   DraftService
	settings SettingsService
}

// NewHandler constructs the ledger HTTP handler. drafts may be nil when no
// redis is configured; the draft routes are then not mounted.
func NewHandler(logger *slog.Logger, invoices InvoiceService, drafts DraftService) *Handler {
	return &Handler{logger: logger, invoices: invoices, drafts: drafts}
}

type invoiceResponse struct {
	ledger.Invoice
	Totals ledger.Totals `json:"totals"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := ledger.Criteria{
		InvoiceNumber: strings.TrimSpace(q.Get("invoiceNumber")),
		RecipientName: strings.TrimSpace(q.Get("recipient")),
		From:          strings.TrimSpace(q.Get("from")),
		To:            strings.TrimSpace(q.Get("to")),
	}
	if q.Has("currency") {
		c, ok := ledger.ParseCurrency(q.Get("currency"))
		if !ok {
			httpx.RespondError(w, fieldError("currency", "is not a supported currency"))
			return
		}
		criteria.Currency = &c
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entries, err := h.invoices.Search(ctx, criteria)
	if err != nil {
		h.respond(w, "search invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload ledger.NewInvoice
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.invoices.Create(r.Context(), payload)
	if err != nil {
		h.respond(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		h.respond(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Invoice: inv, Totals: inv.Totals()})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	var payload ledger.NewInvoice
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.invoices.Update(r.Context(), id, payload); err != nil {
		h.respond(w, "update invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	if err := h.invoices.Delete(r.Context(), id); err != nil {
		h.respond(w, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "all" {
		httpx.RespondError(w, fieldError("confirm", "must be \"all\" to delete every invoice"))
		return
	}
	if err := h.invoices.Purge(r.Context()); err != nil {
		h.respond(w, "purge invoices", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fieldError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func fieldError(field, msg string) error {
	return &ledger.ValidationError{Fields: map[string]string{field: msg}}
}
