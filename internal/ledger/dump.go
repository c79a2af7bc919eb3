package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Table names a ledger table and the columns a dump writes for it.
type Table struct {
	Name    string
	Columns []string
	orderBy string
}

// Tables lists every ledger table, parents before children.
var Tables = []Table{
	{Name: "settings", Columns: []string{"key", "value"}, orderBy: "key"},
	{Name: "invoices", Columns: []string{"id", "invoice_number", "order_id", "date", "due_date", "logo_img", "sign_img",
		"currency", "discount_amount", "tax_percentage", "shipping", "payed", "created_at"}, orderBy: "id"},
	{Name: "sender_info", Columns: []string{"id", "invoice_id", "name", "address", "tax_id", "email", "phone"}, orderBy: "id"},
	{Name: "recipient_info", Columns: []string{"id", "invoice_id", "name", "address", "email", "phone"}, orderBy: "id"},
	{Name: "invoice_items", Columns: []string{"id", "invoice_id", "name", "quantity", "price"}, orderBy: "id"},
}

func lookupTable(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// DumpTable streams every row of the named table to emit as text cells in
// Columns order. NULL becomes an empty cell.
func (s *Store) DumpTable(ctx context.Context, name string, emit func(record []string) error) error {
	table, ok := lookupTable(name)
	if !ok {
		return fmt.Errorf("ledger: unknown table %q", name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(table.Columns, ", "), table.Name, table.orderBy)
	r, err := s.conn.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("ledger: dump %s: %w", name, err)
	}
	defer r.Close()

	cells := make([]any, len(table.Columns))
	dest := make([]any, len(cells))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for r.Next() {
		if err := r.Scan(dest...); err != nil {
			return fmt.Errorf("ledger: scan %s: %w", name, err)
		}
		record := make([]string, len(cells))
		for i, v := range cells {
			record[i] = formatCell(v)
		}
		if err := emit(record); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("ledger: dump %s: %w", name, err)
	}
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
