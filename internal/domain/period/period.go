// Package period parses billing-period keys such as "2025-03" and "march-2025".
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DueDay is the day of the billing month on which a voucher falls due.
const DueDay = 15

// Period is a parsed billing month. Key keeps the caller's spelling so that
// vouchers are stored under the month string they were issued with.
type Period struct {
	Key   string
	Year  int
	Month time.Month
}

// FormatError reports a billing-period key that matches neither accepted form.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid month %q: %s (expected YYYY-MM or monthName-YYYY)", e.Input, e.Reason)
}

var monthNames = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// Parse accepts "YYYY-MM" with MM two digits in 01..12 or "monthName-YYYY" where the
// month name is a full English name in any letter case.
func Parse(input string) (Period, error) {
	key := strings.TrimSpace(input)
	if key == "" {
		return Period{}, &FormatError{Input: input, Reason: "month is required"}
	}

	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		return Period{}, &FormatError{Input: input, Reason: "unrecognized format"}
	}

	if isYear(parts[0]) {
		year, _ := strconv.Atoi(parts[0])
		if len(parts[1]) != 2 || !isDigits(parts[1]) {
			return Period{}, &FormatError{Input: input, Reason: "month must be two digits"}
		}
		m, _ := strconv.Atoi(parts[1])
		if m < 1 || m > 12 {
			return Period{}, &FormatError{Input: input, Reason: "month out of range"}
		}
		return Period{Key: key, Year: year, Month: time.Month(m)}, nil
	}

	if !isYear(parts[1]) {
		return Period{}, &FormatError{Input: input, Reason: "year must be four digits"}
	}
	m, ok := monthNames[strings.ToLower(parts[0])]
	if !ok {
		return Period{}, &FormatError{Input: input, Reason: "unknown month name"}
	}
	year, _ := strconv.Atoi(parts[1])
	return Period{Key: key, Year: year, Month: m}, nil
}

// DueDate returns the 15th of the billing month at midnight UTC.
func (p Period) DueDate() time.Time {
	return time.Date(p.Year, p.Month, DueDay, 0, 0, 0, 0, time.UTC)
}

// VoucherNumber formats V-{YYYY}-{MM}-{suffix}.
func (p Period) VoucherNumber(suffix string) string {
	return fmt.Sprintf("V-%d-%02d-%s", p.Year, int(p.Month), suffix)
}

// String returns the canonical YYYY-MM form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func isYear(s string) bool {
	return len(s) == 4 && isDigits(s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
