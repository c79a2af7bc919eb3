package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/invoicely/invoicely/internal/platform/db"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	handle, err := db.OpenSQLite(s.ctx, ":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = handle.Close() })

	s.store = NewSQLiteStore(handle)
	s.Require().NoError(s.store.Migrate(s.ctx))
	s.Require().NoError(s.store.Migrate(s.ctx), "migrate is idempotent")
}

func (s *StoreSuite) create(inv NewInvoice) int64 {
	id, err := s.store.Create(s.ctx, inv)
	s.Require().NoError(err)
	return id
}

func (s *StoreSuite) TestCreateAndGetRoundTrip() {
	inv := validInvoice("INV-1")
	inv.Info.OrderID = "PO-9"
	inv.Sender.TaxID = "GST-1"
	inv.LogoImg = "logo://a"
	inv.Items = append(inv.Items, Item{Name: "Gadget", Quantity: 1, Price: 4.5})

	id := s.create(inv)
	got, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)

	s.Equal(id, got.ID)
	s.Equal(inv, got.NewInvoice)
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, 404)
	s.True(errors.Is(err, ErrNotFound))
}

func (s *StoreSuite) TestCreateRejectsDuplicates() {
	first := validInvoice("INV-1")
	first.Info.OrderID = "PO-1"
	s.create(first)

	_, err := s.store.Create(s.ctx, validInvoice("INV-1"))
	s.True(errors.Is(err, ErrDuplicate), "invoice number: %v", err)

	clash := validInvoice("INV-2")
	clash.Info.OrderID = "PO-1"
	_, err = s.store.Create(s.ctx, clash)
	s.True(errors.Is(err, ErrDuplicate), "order id: %v", err)

	// empty order ids never clash
	s.create(validInvoice("INV-3"))
	s.create(validInvoice("INV-4"))

	count, err := s.store.InvoiceCount(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, count)
}

func (s *StoreSuite) TestUpdateReplacesItems() {
	id := s.create(validInvoice("INV-1"))
	other := s.create(validInvoice("INV-2"))

	changed := validInvoice("INV-1b")
	changed.Items = []Item{{Name: "Service", Quantity: 3, Price: 7}}
	changed.Currency = Euro
	s.Require().NoError(s.store.Update(s.ctx, id, changed))

	got, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(changed, got.NewInvoice)

	s.True(errors.Is(s.store.Update(s.ctx, other, changed), ErrDuplicate))
	s.True(errors.Is(s.store.Update(s.ctx, 999, validInvoice("INV-9")), ErrNotFound))
}

func (s *StoreSuite) TestDeleteAndPurge() {
	id := s.create(validInvoice("INV-1"))
	s.create(validInvoice("INV-2"))

	s.Require().NoError(s.store.Delete(s.ctx, id))
	s.True(errors.Is(s.store.Delete(s.ctx, id), ErrNotFound))
	_, err := s.store.Get(s.ctx, id)
	s.True(errors.Is(err, ErrNotFound))

	s.Require().NoError(s.store.Purge(s.ctx))
	count, err := s.store.InvoiceCount(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *StoreSuite) TestSearch() {
	march := validInvoice("INV-2024-001")
	s.create(march)

	april := validInvoice("INV-2024-002")
	april.Info.Date = "02/04/2024"
	april.Recipient.Name = "Globex"
	april.Currency = Rupee
	s.create(april)

	empty := validInvoice("INV-2024-003")
	empty.Info.Date = "20/04/2024"
	empty.Items = nil
	s.create(empty)

	all, err := s.store.Search(s.ctx, Criteria{})
	s.Require().NoError(err)
	s.Require().Len(all, 2, "zero-item invoices are skipped")
	s.Equal("INV-2024-002", all[0].InvoiceNumber, "newest first")
	s.Equal("27.00", all[1].Amount)

	byName, err := s.store.Search(s.ctx, Criteria{RecipientName: "GLOB"})
	s.Require().NoError(err)
	s.Require().Len(byName, 1)
	s.Equal(Rupee, byName[0].Currency)

	byRange, err := s.store.Search(s.ctx, Criteria{From: "2024-03-01", To: "2024-03-31"})
	s.Require().NoError(err)
	s.Require().Len(byRange, 1)
	s.Equal("INV-2024-001", byRange[0].InvoiceNumber)

	dollar := Dollar
	byCurrency, err := s.store.Search(s.ctx, Criteria{InvoiceNumber: "inv-2024", Currency: &dollar})
	s.Require().NoError(err)
	s.Require().Len(byCurrency, 1)
}

func (s *StoreSuite) TestInvoiceRevenueHonoursFilter() {
	a := validInvoice("A")
	a.Items = []Item{{Name: "Widget", Quantity: 2, Price: 10}, {Name: "Gadget", Quantity: 1, Price: 5}}
	idA := s.create(a)

	b := validInvoice("B")
	b.Info.Date = "01/05/2024"
	s.create(b)

	euro := validInvoice("C")
	euro.Currency = Euro
	s.create(euro)

	malformed := validInvoice("D")
	malformed.Info.Date = "2024-03-20"
	s.create(malformed)

	rows, err := s.store.InvoiceRevenue(s.ctx, Filter{From: "2024-03-01", To: "2024-03-31", Currency: Dollar})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(InvoiceRevenue{InvoiceID: idA, Date: "15/03/2024", Payed: 10, Revenue: 25, LineCount: 2}, rows[0])

	unbounded, err := s.store.InvoiceRevenue(s.ctx, Filter{Currency: Dollar})
	s.Require().NoError(err)
	s.Len(unbounded, 3, "without date bounds malformed dates are returned for the caller to reject")
}

func (s *StoreSuite) TestSumPayedIncludesInvoicesWithoutItems() {
	s.create(validInvoice("A"))
	empty := validInvoice("B")
	empty.Items = nil
	empty.Payed = 7
	s.create(empty)

	total, err := s.store.SumPayed(s.ctx, Filter{Currency: Dollar})
	s.Require().NoError(err)
	s.InDelta(17, total, 1e-9)

	none, err := s.store.SumPayed(s.ctx, Filter{Currency: NoCurrency})
	s.Require().NoError(err)
	s.Zero(none)

	rows, err := s.store.InvoiceRevenue(s.ctx, Filter{Currency: Dollar})
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *StoreSuite) TestDateBoundsRejectImpossibleStoredDates() {
	s.create(validInvoice("A"))
	impossible := validInvoice("B")
	impossible.Info.Date = "31/04/2024"
	impossible.Payed = 100
	s.create(impossible)
	letters := validInvoice("C")
	letters.Info.Date = "xx/yy/2024"
	letters.Payed = 40
	s.create(letters)

	year := Filter{From: "2024-01-01", To: "2024-12-31", Currency: Dollar}
	paid, err := s.store.SumPayed(s.ctx, year)
	s.Require().NoError(err)
	s.InDelta(10, paid, 1e-9)

	fromOnly := Filter{From: "2024-01-01", Currency: Dollar}
	paid, err = s.store.SumPayed(s.ctx, fromOnly)
	s.Require().NoError(err)
	s.InDelta(10, paid, 1e-9, "letters sort after digits but still fail the bound")

	revenue, err := s.store.InvoiceRevenue(s.ctx, year)
	s.Require().NoError(err)
	s.Len(revenue, 1)

	clients, err := s.store.ClientRevenue(s.ctx, fromOnly)
	s.Require().NoError(err)
	s.Len(clients, 1)

	entries, err := s.store.Search(s.ctx, Criteria{From: "2024-01-01"})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("A", entries[0].InvoiceNumber)

	all, err := s.store.SumPayed(s.ctx, Filter{Currency: Dollar})
	s.Require().NoError(err)
	s.InDelta(150, all, 1e-9, "without bounds every row of the currency counts")
}

func (s *StoreSuite) TestClientRevenue() {
	inv := validInvoice("A")
	inv.Recipient.Email = ""
	s.create(inv)

	rows, err := s.store.ClientRevenue(s.ctx, Filter{Currency: Dollar})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("Acme Corp", rows[0].ClientName)
	s.Equal("", rows[0].ClientEmail)
	s.InDelta(20, rows[0].Revenue, 1e-9)
}

func (s *StoreSuite) TestRecentInvoicesOrdering() {
	older := validInvoice("OLD")
	older.Info.Date = "31/12/2023"
	s.create(older)
	first := s.create(validInvoice("SAME-1"))
	second := s.create(validInvoice("SAME-2"))
	empty := validInvoice("EMPTY")
	empty.Info.Date = "01/01/2025"
	empty.Items = nil
	s.create(empty)

	rows, err := s.store.RecentInvoices(s.ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("EMPTY", rows[0].InvoiceNumber)
	s.Nil(rows[0].Subtotal)
	s.Equal(second, rows[1].ID, "id breaks ties")
	s.Equal(first, rows[2].ID)
	s.Require().NotNil(rows[1].Subtotal)
	s.InDelta(20, *rows[1].Subtotal, 1e-9)
}

func (s *StoreSuite) TestInvoiceFinancials() {
	s.create(validInvoice("A"))
	rupee := validInvoice("B")
	rupee.Currency = Rupee
	rupee.DiscountAmount = 2
	s.create(rupee)
	empty := validInvoice("C")
	empty.Items = nil
	s.create(empty)

	rows, err := s.store.InvoiceFinancials(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(Dollar, rows[0].Currency)
	s.Equal(Rupee, rows[1].Currency)
	s.InDelta(2, rows[1].DiscountAmount, 1e-9)
	s.InDelta(20, rows[1].Subtotal, 1e-9)
}

func TestSQLiteUniqueViolation(t *testing.T) {
	ctx := context.Background()
	handle, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer handle.Close()

	c := sqliteConn{db: handle, q: handle}
	_, err = c.Exec(ctx, `CREATE TABLE t (v TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = c.Exec(ctx, `INSERT INTO t (v) VALUES (?)`, "x")
	require.NoError(t, err)
	_, err = c.Exec(ctx, `INSERT INTO t (v) VALUES (?)`, "x")
	require.Error(t, err)
	assert.True(t, c.uniqueViolation(err))
	assert.False(t, c.uniqueViolation(errors.New("other")))
}
