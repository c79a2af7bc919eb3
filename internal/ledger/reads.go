package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// InvoiceRevenue returns one row per filtered invoice that has items, with
// revenue summed over its lines.
func (s *Store) InvoiceRevenue(ctx context.Context, filter Filter) ([]InvoiceRevenue, error) {
	where, args := filter.where()
	query := fmt.Sprintf(`SELECT i.id, i.date, i.payed, SUM(it.price * it.quantity), COUNT(it.id)
		FROM invoices i
		JOIN invoice_items it ON it.invoice_id = i.id
		%s
		GROUP BY i.id, i.date, i.payed
		ORDER BY i.id`, where)

	r, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: invoice revenue: %w", err)
	}
	defer r.Close()

	out := make([]InvoiceRevenue, 0)
	for r.Next() {
		var row InvoiceRevenue
		if err := r.Scan(&row.InvoiceID, &row.Date, &row.Payed, &row.Revenue, &row.LineCount); err != nil {
			return nil, fmt.Errorf("ledger: scan invoice revenue: %w", err)
		}
		if !filter.matches(row.Date) {
			continue
		}
		out = append(out, row)
	}
	return out, r.Err()
}

// SumPayed totals the payed amount across the filtered invoices, with or
// without items. With date bounds the rows are summed here so that stored
// dates the normalizer rejects stay out of the total.
func (s *Store) SumPayed(ctx context.Context, filter Filter) (float64, error) {
	where, args := filter.where()
	if !filter.bounded() {
		var total float64
		if _, err := scanOne(ctx, s.conn, `SELECT COALESCE(SUM(i.payed), 0) FROM invoices i `+where, args, &total); err != nil {
			return 0, fmt.Errorf("ledger: sum payed: %w", err)
		}
		return total, nil
	}

	r, err := s.conn.Query(ctx, `SELECT i.date, i.payed FROM invoices i `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("ledger: sum payed: %w", err)
	}
	defer r.Close()

	total := decimal.Zero
	for r.Next() {
		var (
			date  string
			payed float64
		)
		if err := r.Scan(&date, &payed); err != nil {
			return 0, fmt.Errorf("ledger: scan payed: %w", err)
		}
		if filter.matches(date) {
			total = total.Add(decimal.NewFromFloat(payed))
		}
	}
	if err := r.Err(); err != nil {
		return 0, fmt.Errorf("ledger: sum payed: %w", err)
	}
	return total.InexactFloat64(), nil
}

// ClientRevenue is InvoiceRevenue restricted to invoices with a recipient.
func (s *Store) ClientRevenue(ctx context.Context, filter Filter) ([]ClientRevenue, error) {
	where, args := filter.where()
	query := fmt.Sprintf(`SELECT i.id, i.date, i.payed, r.name, COALESCE(r.email, ''),
			SUM(it.price * it.quantity), COUNT(it.id)
		FROM invoices i
		JOIN invoice_items it ON it.invoice_id = i.id
		JOIN recipient_info r ON r.invoice_id = i.id
		%s
		GROUP BY i.id, i.date, i.payed, r.name, r.email
		ORDER BY i.id`, where)

	r, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: client revenue: %w", err)
	}
	defer r.Close()

	out := make([]ClientRevenue, 0)
	for r.Next() {
		var row ClientRevenue
		if err := r.Scan(&row.InvoiceID, &row.Date, &row.Payed, &row.ClientName, &row.ClientEmail,
			&row.Revenue, &row.LineCount); err != nil {
			return nil, fmt.Errorf("ledger: scan client revenue: %w", err)
		}
		if !filter.matches(row.Date) {
			continue
		}
		out = append(out, row)
	}
	return out, r.Err()
}

// RecentInvoices returns the newest invoices by their stored date, id
// breaking ties. Rows without items are included with a nil subtotal.
func (s *Store) RecentInvoices(ctx context.Context, limit int) ([]RecentInvoice, error) {
	return s.listRows(ctx, "", nil, limit)
}

func (s *Store) listRows(ctx context.Context, where string, args []any, limit int) ([]RecentInvoice, error) {
	query := fmt.Sprintf(`SELECT i.id, i.invoice_number, i.date, r.name, i.tax_percentage, i.discount_amount,
			i.shipping, i.payed, i.currency, t.subtotal
		FROM invoices i
		JOIN recipient_info r ON r.invoice_id = i.id
		LEFT JOIN (
			SELECT invoice_id, SUM(price * quantity) AS subtotal FROM invoice_items GROUP BY invoice_id
		) t ON t.invoice_id = i.id
		%s
		ORDER BY %s DESC, i.id DESC`, where, sortableDate("i.date"))
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	r, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list invoices: %w", err)
	}
	defer r.Close()

	out := make([]RecentInvoice, 0)
	for r.Next() {
		var (
			row      RecentInvoice
			currency string
			subtotal sql.NullFloat64
		)
		if err := r.Scan(&row.ID, &row.InvoiceNumber, &row.Date, &row.RecipientName, &row.TaxPercentage,
			&row.DiscountAmount, &row.Shipping, &row.Payed, &currency, &subtotal); err != nil {
			return nil, fmt.Errorf("ledger: scan invoice: %w", err)
		}
		row.Currency = Currency(currency)
		if subtotal.Valid {
			v := subtotal.Float64
			row.Subtotal = &v
		}
		out = append(out, row)
	}
	return out, r.Err()
}

// InvoiceCount counts every invoice row.
func (s *Store) InvoiceCount(ctx context.Context) (int64, error) {
	var count int64
	if _, err := scanOne(ctx, s.conn, `SELECT COUNT(*) FROM invoices`, nil, &count); err != nil {
		return 0, fmt.Errorf("ledger: count invoices: %w", err)
	}
	return count, nil
}

// InvoiceFinancials returns per-invoice amounts with the item subtotal for
// every invoice that has items, across all currencies.
func (s *Store) InvoiceFinancials(ctx context.Context) ([]InvoiceFinancials, error) {
	r, err := s.conn.Query(ctx, `SELECT i.id, i.currency, i.discount_amount, i.tax_percentage, i.shipping, i.payed,
			SUM(it.price * it.quantity)
		FROM invoices i
		JOIN invoice_items it ON it.invoice_id = i.id
		GROUP BY i.id, i.currency, i.discount_amount, i.tax_percentage, i.shipping, i.payed
		ORDER BY i.id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: invoice financials: %w", err)
	}
	defer r.Close()

	out := make([]InvoiceFinancials, 0)
	for r.Next() {
		var (
			row      InvoiceFinancials
			currency string
		)
		if err := r.Scan(&row.InvoiceID, &currency, &row.DiscountAmount, &row.TaxPercentage,
			&row.Shipping, &row.Payed, &row.Subtotal); err != nil {
			return nil, fmt.Errorf("ledger: scan invoice financials: %w", err)
		}
		row.Currency = Currency(currency)
		out = append(out, row)
	}
	return out, r.Err()
}
