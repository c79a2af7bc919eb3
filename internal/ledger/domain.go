package ledger

import (
	"strings"

	"golang.org/x/text/currency"
)

// Currency is the symbol stored on an invoice. The empty value means no
// currency was selected and is matched like any other value.
type Currency string

const (
	NoCurrency Currency = ""
	Rupee      Currency = "₹"
	Dollar     Currency = "$"
	Euro       Currency = "€"
)

// SupportedCurrencies lists every currency an invoice may carry, sentinel first.
var SupportedCurrencies = []Currency{NoCurrency, Rupee, Dollar, Euro}

var currencyUnits = map[Currency]currency.Unit{
	Rupee:  currency.INR,
	Dollar: currency.USD,
	Euro:   currency.EUR,
}

// Supported reports whether c is one of SupportedCurrencies.
func (c Currency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

// Code returns the ISO 4217 code, or "" for the sentinel.
func (c Currency) Code() string {
	unit, ok := currencyUnits[c]
	if !ok {
		return ""
	}
	return unit.String()
}

// ParseCurrency accepts a currency symbol or its ISO code. "none" selects
// the sentinel, as does the empty string.
func ParseCurrency(raw string) (Currency, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return NoCurrency, true
	}
	if c := Currency(raw); c.Supported() {
		return c, true
	}
	unit, err := currency.ParseISO(raw)
	if err != nil {
		return NoCurrency, false
	}
	for c, u := range currencyUnits {
		if u == unit {
			return c, true
		}
	}
	return NoCurrency, false
}

// Sender describes the issuing party.
type Sender struct {
	Name    string `json:"name" validate:"required,min=2,max=50"`
	Address string `json:"address" validate:"required,min=5,max=100"`
	TaxID   string `json:"taxId,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
}

// Recipient describes the billed client.
type Recipient struct {
	Name    string `json:"name" validate:"required,min=2,max=50"`
	Address string `json:"address" validate:"required,min=5,max=100"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
}

// Info carries the invoice identifiers and stored (DD/MM/YYYY) dates.
type Info struct {
	InvoiceNumber string `json:"invoiceNumber" validate:"required"`
	OrderID       string `json:"orderId"`
	Date          string `json:"date" validate:"required,stored_date"`
	DueDate       string `json:"dueDate" validate:"required,stored_date"`
}

// Item is a single invoice line.
type Item struct {
	Name     string  `json:"name" validate:"required,min=2"`
	Quantity int     `json:"quantity" validate:"min=1"`
	Price    float64 `json:"price" validate:"gte=0.01"`
}

// NewInvoice is the full write payload for an invoice.
type NewInvoice struct {
	Sender         Sender    `json:"senderInfo"`
	Recipient      Recipient `json:"recipientInfo"`
	Info           Info      `json:"invoiceInfo"`
	Items          []Item    `json:"items" validate:"required,min=1,dive"`
	DiscountAmount float64   `json:"discountAmount" validate:"gte=0"`
	TaxPercentage  float64   `json:"taxPercentage" validate:"gte=0"`
	Shipping       float64   `json:"shipping" validate:"gte=0"`
	Payed          float64   `json:"payed" validate:"gte=0"`
	LogoImg        string    `json:"logoImg,omitempty"`
	SignImg        string    `json:"signImg,omitempty"`
	Currency       Currency  `json:"currency" validate:"currency"`
}

// Invoice is a persisted invoice with its related records.
type Invoice struct {
	ID int64 `json:"id"`
	NewInvoice
}

// Totals recomputes the invoice financials from its current items.
func (inv NewInvoice) Totals() Totals {
	return ComputeTotals(ItemsSubtotal(inv.Items), inv.DiscountAmount, inv.TaxPercentage, inv.Shipping, inv.Payed)
}

// ListEntry is the compact row used by search results and recent lists.
type ListEntry struct {
	ID            int64    `json:"id"`
	InvoiceNumber string   `json:"invoiceNumber"`
	RecipientName string   `json:"recipientName"`
	Date          string   `json:"date"`
	Amount        string   `json:"amount"`
	Currency      Currency `json:"currency"`
}

// Criteria filters Search. Date bounds are comparable YYYY-MM-DD strings.
type Criteria struct {
	InvoiceNumber string
	RecipientName string
	From          string
	To            string
	Currency      *Currency
}

// InvoiceRevenue is one item-joined invoice: its revenue summed over lines.
type InvoiceRevenue struct {
	InvoiceID int64
	Date      string
	Payed     float64
	Revenue   float64
	LineCount int64
}

// ClientRevenue is InvoiceRevenue joined to the invoice recipient.
type ClientRevenue struct {
	InvoiceID   int64
	Date        string
	Payed       float64
	ClientName  string
	ClientEmail string
	Revenue     float64
	LineCount   int64
}

// InvoiceFinancials carries what is needed to recompute a grand total.
type InvoiceFinancials struct {
	InvoiceID      int64
	Currency       Currency
	DiscountAmount float64
	TaxPercentage  float64
	Shipping       float64
	Payed          float64
	Subtotal       float64
}

// Totals computes the invoice financials for the row.
func (f InvoiceFinancials) Totals() Totals {
	return ComputeTotals(f.Subtotal, f.DiscountAmount, f.TaxPercentage, f.Shipping, f.Payed)
}

// RecentInvoice is a dated invoice joined to its recipient. Subtotal is nil
// when the invoice has no items.
type RecentInvoice struct {
	ID             int64
	InvoiceNumber  string
	Date           string
	RecipientName  string
	TaxPercentage  float64
	DiscountAmount float64
	Shipping       float64
	Payed          float64
	Currency       Currency
	Subtotal       *float64
}

// Entry converts the row into a ListEntry; ok is false when it has no items.
func (r RecentInvoice) Entry() (ListEntry, bool) {
	if r.Subtotal == nil {
		return ListEntry{}, false
	}
	totals := ComputeTotals(*r.Subtotal, r.DiscountAmount, r.TaxPercentage, r.Shipping, r.Payed)
	return ListEntry{
		ID:            r.ID,
		InvoiceNumber: r.InvoiceNumber,
		RecipientName: r.RecipientName,
		Date:          r.Date,
		Amount:        totals.Amount(),
		Currency:      r.Currency,
	}, true
}
