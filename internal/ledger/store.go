package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists invoices in a relational ledger. The same queries run on
// Postgres (pgx) and SQLite (database/sql).
type Store struct {
	conn   conn
	schema []string
}

// NewPostgresStore constructs a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{conn: pgConn{pool: pool, q: pool}, schema: postgresSchema}
}

// NewSQLiteStore constructs a store backed by a database/sql SQLite handle.
func NewSQLiteStore(db *sql.DB) *Store {
	return &Store{conn: sqliteConn{db: db, q: db}, schema: sqliteSchema}
}

// Migrate creates the ledger tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ledger: migrate: %w", err)
		}
	}
	return nil
}

// Create inserts the invoice with its parties and items in one transaction.
func (s *Store) Create(ctx context.Context, inv NewInvoice) (int64, error) {
	var id int64
	err := s.conn.InTx(ctx, func(c conn) error {
		if err := checkUnique(ctx, c, inv.Info, 0); err != nil {
			return err
		}
		found, err := scanOne(ctx, c, `INSERT INTO invoices (
			invoice_number, order_id, date, due_date, logo_img, sign_img, currency,
			discount_amount, tax_percentage, shipping, payed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			[]any{
				inv.Info.InvoiceNumber, nullable(inv.Info.OrderID), inv.Info.Date, inv.Info.DueDate,
				nullable(inv.LogoImg), nullable(inv.SignImg), string(inv.Currency),
				inv.DiscountAmount, inv.TaxPercentage, inv.Shipping, inv.Payed,
			}, &id)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if !found {
			return errors.New("insert invoice: no id returned")
		}
		return insertRelated(ctx, c, id, inv)
	})
	if err != nil {
		return 0, s.mapWriteErr("create", err)
	}
	return id, nil
}

// Get loads one invoice with its sender, recipient, and items.
func (s *Store) Get(ctx context.Context, id int64) (Invoice, error) {
	var (
		inv      Invoice
		orderID  sql.NullString
		logoImg  sql.NullString
		signImg  sql.NullString
		currency string
	)
	found, err := scanOne(ctx, s.conn, `SELECT id, invoice_number, order_id, date, due_date, logo_img, sign_img,
		currency, discount_amount, tax_percentage, shipping, payed
		FROM invoices WHERE id = ?`, []any{id},
		&inv.ID, &inv.Info.InvoiceNumber, &orderID, &inv.Info.Date, &inv.Info.DueDate, &logoImg, &signImg,
		&currency, &inv.DiscountAmount, &inv.TaxPercentage, &inv.Shipping, &inv.Payed)
	if err != nil {
		return Invoice{}, fmt.Errorf("ledger: get invoice: %w", err)
	}
	if !found {
		return Invoice{}, ErrNotFound
	}
	inv.Info.OrderID = orderID.String
	inv.LogoImg = logoImg.String
	inv.SignImg = signImg.String
	inv.Currency = Currency(currency)

	var taxID, senderEmail, senderPhone sql.NullString
	if _, err := scanOne(ctx, s.conn, `SELECT name, address, tax_id, email, phone
		FROM sender_info WHERE invoice_id = ? ORDER BY id LIMIT 1`, []any{id},
		&inv.Sender.Name, &inv.Sender.Address, &taxID, &senderEmail, &senderPhone); err != nil {
		return Invoice{}, fmt.Errorf("ledger: get sender: %w", err)
	}
	inv.Sender.TaxID = taxID.String
	inv.Sender.Email = senderEmail.String
	inv.Sender.Phone = senderPhone.String

	var recipientEmail, recipientPhone sql.NullString
	if _, err := scanOne(ctx, s.conn, `SELECT name, address, email, phone
		FROM recipient_info WHERE invoice_id = ? ORDER BY id LIMIT 1`, []any{id},
		&inv.Recipient.Name, &inv.Recipient.Address, &recipientEmail, &recipientPhone); err != nil {
		return Invoice{}, fmt.Errorf("ledger: get recipient: %w", err)
	}
	inv.Recipient.Email = recipientEmail.String
	inv.Recipient.Phone = recipientPhone.String

	items, err := s.items(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items
	return inv, nil
}

func (s *Store) items(ctx context.Context, invoiceID int64) ([]Item, error) {
	r, err := s.conn.Query(ctx, `SELECT name, quantity, price FROM invoice_items WHERE invoice_id = ? ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list items: %w", err)
	}
	defer r.Close()

	items := make([]Item, 0)
	for r.Next() {
		var item Item
		if err := r.Scan(&item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("ledger: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, r.Err()
}

// Update replaces the invoice fields, both parties, and all items.
func (s *Store) Update(ctx context.Context, id int64, inv NewInvoice) error {
	err := s.conn.InTx(ctx, func(c conn) error {
		if err := checkUnique(ctx, c, inv.Info, id); err != nil {
			return err
		}
		affected, err := c.Exec(ctx, `UPDATE invoices SET
			invoice_number = ?, order_id = ?, date = ?, due_date = ?, logo_img = ?, sign_img = ?,
			currency = ?, discount_amount = ?, tax_percentage = ?, shipping = ?, payed = ?
			WHERE id = ?`,
			inv.Info.InvoiceNumber, nullable(inv.Info.OrderID), inv.Info.Date, inv.Info.DueDate,
			nullable(inv.LogoImg), nullable(inv.SignImg), string(inv.Currency),
			inv.DiscountAmount, inv.TaxPercentage, inv.Shipping, inv.Payed, id)
		if err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		if err := deleteRelated(ctx, c, id); err != nil {
			return err
		}
		return insertRelated(ctx, c, id, inv)
	})
	if err != nil {
		return s.mapWriteErr("update", err)
	}
	return nil
}

// Delete removes the invoice and everything attached to it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.conn.InTx(ctx, func(c conn) error {
		if err := deleteRelated(ctx, c, id); err != nil {
			return err
		}
		affected, err := c.Exec(ctx, `DELETE FROM invoices WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return s.mapWriteErr("delete", err)
	}
	return nil
}

// Purge deletes every invoice and setting in the ledger.
func (s *Store) Purge(ctx context.Context) error {
	err := s.conn.InTx(ctx, func(c conn) error {
		for _, table := range []string{"invoice_items", "sender_info", "recipient_info", "invoices", "settings"} {
			if _, err := c.Exec(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("purge %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// Search lists invoices matching the criteria, newest first. Invoices
// without items carry no amount and are skipped.
func (s *Store) Search(ctx context.Context, criteria Criteria) ([]ListEntry, error) {
	where, args := criteria.where()
	rows, err := s.listRows(ctx, where, args, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]ListEntry, 0, len(rows))
	for _, row := range rows {
		if !matchesDate(row.Date, criteria.From, criteria.To) {
			continue
		}
		if entry, ok := row.Entry(); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Store) mapWriteErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate):
		return err
	case s.conn.uniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return fmt.Errorf("ledger: %s: %w", op, err)
	}
}

func checkUnique(ctx context.Context, c conn, info Info, excludeID int64) error {
	var clash int64
	found, err := scanOne(ctx, c, `SELECT id FROM invoices WHERE invoice_number = ? AND id <> ? LIMIT 1`,
		[]any{info.InvoiceNumber, excludeID}, &clash)
	if err != nil {
		return fmt.Errorf("check invoice number: %w", err)
	}
	if found {
		return fmt.Errorf("%w: invoice number %q already exists", ErrDuplicate, info.InvoiceNumber)
	}
	if info.OrderID == "" {
		return nil
	}
	found, err = scanOne(ctx, c, `SELECT id FROM invoices WHERE order_id = ? AND id <> ? LIMIT 1`,
		[]any{info.OrderID, excludeID}, &clash)
	if err != nil {
		return fmt.Errorf("check order id: %w", err)
	}
	if found {
		return fmt.Errorf("%w: order id %q already exists", ErrDuplicate, info.OrderID)
	}
	return nil
}

func insertRelated(ctx context.Context, c conn, id int64, inv NewInvoice) error {
	if _, err := c.Exec(ctx, `INSERT INTO sender_info (invoice_id, name, address, tax_id, email, phone)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, inv.Sender.Name, inv.Sender.Address, nullable(inv.Sender.TaxID),
		nullable(inv.Sender.Email), nullable(inv.Sender.Phone)); err != nil {
		return fmt.Errorf("insert sender: %w", err)
	}
	if _, err := c.Exec(ctx, `INSERT INTO recipient_info (invoice_id, name, address, email, phone)
		VALUES (?, ?, ?, ?, ?)`,
		id, inv.Recipient.Name, inv.Recipient.Address,
		nullable(inv.Recipient.Email), nullable(inv.Recipient.Phone)); err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}
	for _, item := range inv.Items {
		if _, err := c.Exec(ctx, `INSERT INTO invoice_items (invoice_id, name, quantity, price) VALUES (?, ?, ?, ?)`,
			id, item.Name, item.Quantity, item.Price); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return nil
}

func deleteRelated(ctx context.Context, c conn, id int64) error {
	for _, table := range []string{"invoice_items", "sender_info", "recipient_info"} {
		if _, err := c.Exec(ctx, "DELETE FROM "+table+" WHERE invoice_id = ?", id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}
