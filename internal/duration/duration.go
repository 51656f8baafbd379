// Package duration provides parsing for human-readable duration strings.
package duration

import (
	"fmt"
	"time"
)

const month = 30 * 24 * time.Hour

// Parse parses human-readable spans like "30d", "6mo", "1y" into a duration.
func Parse(s string) (time.Duration, error) {
	var n int
	var unit string

	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0, fmt.Errorf("invalid duration format: %s (use e.g., 30d, 6mo, 1y)", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}

	switch unit {
	case "h", "hr", "hrs", "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(n) * 24 * time.Hour, nil
	case "w", "wk", "wks", "week", "weeks":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case "mo", "month", "months":
		return time.Duration(n) * month, nil
	case "y", "yr", "yrs", "year", "years":
		return time.Duration(n) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %s", unit)
	}
}

// Months converts a span string into a whole number of 30-day months,
// rounding to the nearest month with a minimum of 1 for any non-zero span.
// Used by cutoff flags that accept "90d" as shorthand for 3 months.
func Months(s string) (int, error) {
	d, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, nil
	}

	months := int((d + month/2) / month)
	if months < 1 {
		months = 1
	}
	return months, nil
}
