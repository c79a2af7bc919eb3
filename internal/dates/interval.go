package dates

import (
	"fmt"
	"strings"
)

// Interval selects the bucket granularity of a time series.
type Interval string

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
)

// DefaultInterval applies when callers leave the interval empty.
const DefaultInterval = Monthly

// ParseInterval accepts the three interval names; empty means monthly.
func ParseInterval(value string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return DefaultInterval, nil
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	default:
		return "", fmt.Errorf("dates: unknown interval %q", value)
	}
}

// Valid reports whether i is one of the known intervals.
func (i Interval) Valid() bool {
	return i == Daily || i == Weekly || i == Monthly
}

// Label returns the bucket key for d. Keys are zero padded so that string
// order matches chronological order.
func (i Interval) Label(d Date) string {
	switch i {
	case Daily:
		return d.Comparable()
	case Weekly:
		return fmt.Sprintf("%04d-W%02d", d.Year, WeekOfYear(d))
	default:
		return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	}
}

// WeekOfYear counts Monday-started weeks since January 1st (0..53); days
// before the first Monday fall in week 0. Matches strftime %W, not ISO 8601.
func WeekOfYear(d Date) int {
	t := d.Time()
	yday := t.YearDay() - 1
	mondayIndex := (int(t.Weekday()) + 6) % 7
	return (yday + 7 - mondayIndex) / 7
}
