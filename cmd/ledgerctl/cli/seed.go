package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/invoicely/invoicely/internal/dates"
	"github.com/invoicely/invoicely/internal/ledger"
)

// SeedOptions shapes the generated demo ledger.
type SeedOptions struct {
	Count  int
	Months int
	Seed   uint64
	Now    time.Time
}

type demoClient struct {
	name, email, address string
}

var demoClients = []demoClient{
	{"Acme Corp", "ap@acme.test", "42 Harbour Road"},
	{"Globex", "billing@globex.test", "7 Industrial Park"},
	{"Initech", "finance@initech.test", "300 Office Lane"},
	{"Umbrella Labs", "", "1 Research Drive"},
	{"Hooli", "payables@hooli.test", "1600 Valley Way"},
}

var demoItems = []string{"Consulting", "Design review", "Hosting", "Support plan", "Workshop", "License"}

// DemoInvoices generates a deterministic ledger for the options. The same
// seed always yields the same invoices.
func DemoInvoices(opts SeedOptions) []ledger.NewInvoice {
	if opts.Count <= 0 {
		return nil
	}
	if opts.Months <= 0 {
		opts.Months = 12
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	span := opts.Months * 30

	out := make([]ledger.NewInvoice, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		client := demoClients[rng.IntN(len(demoClients))]
		issued := opts.Now.AddDate(0, 0, -rng.IntN(span))

		items := make([]ledger.Item, 1+rng.IntN(3))
		var subtotal float64
		for j := range items {
			items[j] = ledger.Item{
				Name:     demoItems[rng.IntN(len(demoItems))],
				Quantity: 1 + rng.IntN(5),
				Price:    cents(10 + rng.Float64()*490),
			}
			subtotal += float64(items[j].Quantity) * items[j].Price
		}
		inv := ledger.NewInvoice{
			Sender:    ledger.Sender{Name: "Invoicely Demo", Address: "1 Market Street", Email: "hello@invoicely.test"},
			Recipient: ledger.Recipient{Name: client.name, Address: client.address, Email: client.email},
			Info: ledger.Info{
				InvoiceNumber: fmt.Sprintf("DEMO-%d-%04d", opts.Seed, i+1),
				OrderID:       fmt.Sprintf("PO-%d-%04d", opts.Seed, i+1),
				Date:          dates.FormatStored(issued),
				DueDate:       dates.FormatStored(issued.AddDate(0, 0, 30)),
			},
			Items:         items,
			TaxPercentage: float64(rng.IntN(3) * 5),
			Shipping:      float64(rng.IntN(4) * 5),
			Currency:      ledger.SupportedCurrencies[rng.IntN(len(ledger.SupportedCurrencies))],
		}
		switch rng.IntN(3) {
		case 0:
			inv.Payed = 0
		case 1:
			inv.Payed = cents(subtotal * rng.Float64())
		default:
			inv.Payed = inv.Totals().Grand.Round(2).InexactFloat64()
		}
		out = append(out, inv)
	}
	return out
}

// Seed writes the demo invoices through creator and reports how many were
// stored before the first failure.
func Seed(ctx context.Context, creator ledger.Creator, opts SeedOptions) (int, error) {
	if creator == nil {
		return 0, errors.New("seed: creator required")
	}
	created := 0
	for _, inv := range DemoInvoices(opts) {
		if _, err := creator.Create(ctx, inv); err != nil {
			return created, fmt.Errorf("seed %s: %w", inv.Info.InvoiceNumber, err)
		}
		created++
	}
	return created, nil
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
