package recurrence

import (
	"fmt"
	"time"
)

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string as local midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders the wall-clock calendar day of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last instant of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// civil maps the wall-clock day of t onto UTC midnight. Expansion runs on
// civil days so DST transitions in the local zone never drop or shift a day.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NavLimit returns the first day of the month that lies months after today's
// month, the last month front-ends navigate to.
func NavLimit(today time.Time, months int) time.Time {
	y, m, _ := today.Date()
	return time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, today.Location())
}
