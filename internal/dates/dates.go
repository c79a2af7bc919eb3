// Package dates converts between the ledger's stored calendar strings
// (DD/MM/YYYY) and sortable calendar dates, and groups dates into interval
// buckets.
package dates

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StoredLayout is the canonical ledger format. It never depends on the host locale.
const StoredLayout = "02/01/2006"

// ComparableLayout sorts lexicographically in chronological order.
const ComparableLayout = "2006-01-02"

// ErrInvalidDate marks strings that are not a real DD/MM/YYYY calendar date.
var ErrInvalidDate = errors.New("dates: invalid date")

// Date is a calendar day without time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Parse converts a stored DD/MM/YYYY string. Day and month must be two digits
// and the year four; out-of-range days are rejected rather than normalised.
func Parse(stored string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(stored), "/")
	if len(parts) != 3 || len(parts[0]) != 2 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, stored)
	}
	day, ok := digits(parts[0])
	if !ok {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, stored)
	}
	month, ok := digits(parts[1])
	if !ok {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, stored)
	}
	year, ok := digits(parts[2])
	if !ok {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, stored)
	}
	return build(year, month, day, stored)
}

// ParseComparable converts a YYYY-MM-DD string.
func ParseComparable(value string) (Date, error) {
	t, err := time.Parse(ComparableLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return FromTime(t), nil
}

// FromTime takes the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// FormatStored renders t's calendar date in the stored format.
func FormatStored(t time.Time) string {
	return FromTime(t).Stored()
}

// Stored renders the date as DD/MM/YYYY.
func (d Date) Stored() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// Comparable renders the date as YYYY-MM-DD.
func (d Date) Comparable() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	return d.Time().Compare(other.Time())
}

func build(year, month, day int, raw string) (Date, error) {
	if month < 1 || month > 12 || day < 1 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

func digits(s string) (int, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
