package ledgerhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/invoicely/invoicely/internal/ledger"
	"github.com/invoicely/invoicely/internal/platform/httpx"
)

type imagesPatch struct {
	Logo string `json:"logoImg"`
	Sign string `json:"signImg"`
}

type datesPatch struct {
	Date    time.Time `json:"date"`
	DueDate time.Time `json:"dueDate"`
}

// draftPatch updates any subset of the draft sections. Reset is applied first.
type draftPatch struct {
	Reset     bool              `json:"reset,omitempty"`
	Sender    *ledger.Sender    `json:"senderInfo,omitempty"`
	Recipient *ledger.Recipient `json:"recipientInfo,omitempty"`
	Info      *ledger.Info      `json:"invoiceInfo,omitempty"`
	Dates     *datesPatch       `json:"dates,omitempty"`
	Items     *ledger.Charges   `json:"itemsInfo,omitempty"`
	Images    *imagesPatch      `json:"images,omitempty"`
	Currency  *ledger.Currency  `json:"currency,omitempty"`
}

func (p draftPatch) apply(d *ledger.Draft) {
	if p.Reset {
		d.Reset()
	}
	if p.Sender != nil {
		d.SetSender(*p.Sender)
	}
	if p.Recipient != nil {
		d.SetRecipient(*p.Recipient)
	}
	if p.Info != nil {
		d.SetInfo(*p.Info)
	}
	if p.Dates != nil {
		d.SetDates(p.Dates.Date, p.Dates.DueDate)
	}
	if p.Items != nil {
		d.SetItems(*p.Items)
	}
	if p.Images != nil {
		d.SetImages(p.Images.Logo, p.Images.Sign)
	}
	if p.Currency != nil {
		d.SetCurrency(*p.Currency)
	}
}

// handleStartDraft opens a new draft, optionally seeded from an existing
// invoice with ?from={invoiceID}.
func (h *Handler) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	var seed *ledger.Invoice
	if from := r.URL.Query().Get("from"); from != "" {
		id, err := strconv.ParseInt(from, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, fieldError("from", "must be a positive integer"))
			return
		}
		inv, err := h.invoices.Get(r.Context(), id)
		if err != nil {
			h.respond(w, "seed draft", err)
			return
		}
		seed = &inv
	}

	d, err := h.drafts.Start(r.Context())
	if err != nil {
		h.respond(w, "start draft", err)
		return
	}
	if seed != nil {
		d.Replace(seed.NewInvoice)
		if err := h.drafts.Save(r.Context(), d); err != nil {
			h.respond(w, "save draft", err)
			return
		}
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, "load draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handlePatchDraft(w http.ResponseWriter, r *http.Request) {
	var patch draftPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if patch.Currency != nil && !patch.Currency.Supported() {
		httpx.RespondError(w, fieldError("currency", "is not a supported currency"))
		return
	}
	d, err := h.drafts.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, "load draft", err)
		return
	}
	patch.apply(d)
	if err := h.drafts.Save(r.Context(), d); err != nil {
		h.respond(w, "save draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respond(w, "discard draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCommitDraft(w http.ResponseWriter, r *http.Request) {
	id, err := h.drafts.Commit(r.Context(), chi.URLParam(r, "id"), h.invoices)
	if err != nil {
		h.respond(w, "commit draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createdResponse{ID: id})
}
