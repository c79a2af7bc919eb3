package ledger

import (
	"fmt"
	"strings"

	"github.com/invoicely/invoicely/internal/dates"
)

// Filter scopes the analytics reads. From and To are inclusive comparable
// (YYYY-MM-DD) bounds; empty means unbounded. Currency is always an exact match.
type Filter struct {
	From     string
	To       string
	Currency Currency
}

// sortableDate converts a DD/MM/YYYY column into YYYY-MM-DD inside SQL.
func sortableDate(column string) string {
	return fmt.Sprintf("(substr(%[1]s, 7, 4) || '-' || substr(%[1]s, 4, 2) || '-' || substr(%[1]s, 1, 2))", column)
}

// storedShape keeps malformed stored dates out of range comparisons. It is a
// coarse pre-filter: impossible calendar dates such as 31/04 still pass, so
// readers recheck bounded rows with matchesDate.
func storedShape(column string) string {
	return fmt.Sprintf("%s LIKE '__/__/____'", column)
}

// matchesDate applies inclusive comparable bounds to a stored date. A date
// that does not parse never matches a bound; without bounds every row matches.
func matchesDate(stored, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	d, err := dates.Parse(stored)
	if err != nil {
		return false
	}
	c := d.Comparable()
	return (from == "" || c >= from) && (to == "" || c <= to)
}

type whereBuilder struct {
	conditions []string
	args       []any
}

func (b *whereBuilder) add(cond string, args ...any) {
	b.conditions = append(b.conditions, cond)
	b.args = append(b.args, args...)
}

func (b *whereBuilder) dateRange(column, from, to string) {
	if from != "" {
		b.add(fmt.Sprintf("(%s AND %s >= ?)", storedShape(column), sortableDate(column)), from)
	}
	if to != "" {
		b.add(fmt.Sprintf("(%s AND %s <= ?)", storedShape(column), sortableDate(column)), to)
	}
}

func (b *whereBuilder) sql() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conditions, " AND ")
}

func (f Filter) bounded() bool {
	return f.From != "" || f.To != ""
}

func (f Filter) matches(stored string) bool {
	return matchesDate(stored, f.From, f.To)
}

func (f Filter) where() (string, []any) {
	var b whereBuilder
	b.dateRange("i.date", f.From, f.To)
	b.add("i.currency = ?", string(f.Currency))
	return b.sql(), b.args
}

func (c Criteria) where() (string, []any) {
	var b whereBuilder
	if c.InvoiceNumber != "" {
		b.add("LOWER(i.invoice_number) LIKE LOWER(?)", "%"+c.InvoiceNumber+"%")
	}
	if c.RecipientName != "" {
		b.add("LOWER(r.name) LIKE LOWER(?)", "%"+c.RecipientName+"%")
	}
	b.dateRange("i.date", c.From, c.To)
	if c.Currency != nil {
		b.add("i.currency = ?", string(*c.Currency))
	}
	return b.sql(), b.args
}

// rebindDollar rewrites ? placeholders to $1..$n, leaving quoted literals alone.
func rebindDollar(query string) string {
	var out strings.Builder
	out.Grow(len(query) + 16)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			out.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			fmt.Fprintf(&out, "$%d", n)
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
