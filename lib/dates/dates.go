package dates

import "time"

// Layout is the canonical day key format. Lexicographic order on keys in
// this layout matches chronological order, so keys can be sorted as strings.
const Layout = "2006-01-02"

// Format renders a time as its canonical "YYYY-MM-DD" day key, discarding
// any time-of-day component.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse converts a canonical day key back into a time at midnight UTC.
// A malformed key is a caller bug; the error is surfaced for boundary
// validation, not for the analytics layer to handle.
func Parse(key string) (time.Time, error) {
	return time.Parse(Layout, key)
}

// Truncate normalizes a time to midnight of its calendar day.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays returns the day n calendar days after d (n may be negative).
func AddDays(d time.Time, n int) time.Time {
	return Truncate(d).AddDate(0, 0, n)
}

// StartOfWeek returns the Sunday on or before d. The week begins on Sunday
// (day-of-week 0) everywhere in this codebase.
func StartOfWeek(d time.Time) time.Time {
	d = Truncate(d)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Truncate(a).Equal(Truncate(b))
}

// DaysBetween returns the signed number of whole days from a to b,
// exclusive: DaysBetween(d, d) == 0 and DaysBetween(d, d+1) == 1.
// Both days are compared as UTC dates so DST transitions in the inputs'
// locations cannot skew the count.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// InclusiveDays returns the number of calendar days in the closed range
// [start, end], so InclusiveDays(d, d) == 1. Returns 0 for an inverted
// range.
func InclusiveDays(start, end time.Time) int {
	n := DaysBetween(start, end) + 1
	if n < 0 {
		return 0
	}
	return n
}
