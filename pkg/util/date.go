package util

import "time"

// DateLayout is the wire format for trading-day dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD day. Returns (t, true) at UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDateDefault parses a day or returns default if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// FormatDate renders t's UTC calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DayStart truncates t to its UTC calendar day.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
