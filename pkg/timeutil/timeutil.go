// Package timeutil provides timezone-aware calendar utilities.
// Streak continuity and leaderboard windows depend on calendar days in the
// user's configured zone, so every helper here takes an explicit location.
// No external dependencies - uses only standard library.
package timeutil

import (
	"math"
	"time"
)

// DefaultZone is used when a user has no configured time zone.
var DefaultZone = time.UTC

// LocationOrDefault resolves an IANA zone name, falling back to DefaultZone
// when the name is empty or unknown.
func LocationOrDefault(name string) *time.Location {
	if name == "" {
		return DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return DefaultZone
	}
	return loc
}

// StartOfDay returns the start of the day (00:00:00) in the given location.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the given location.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, loc)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in the given location.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	daysToSubtract := weekday - 1 // Monday = 1
	return StartOfDay(local.AddDate(0, 0, -daysToSubtract), loc)
}

// StartOfMonth returns the start of the month in the given location.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// IsSameDay checks if two times are on the same calendar day in the given location.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	a1, a2 := t1.In(loc), t2.In(loc)
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// IsConsecutiveDay checks if t2 is the calendar day after t1.
func IsConsecutiveDay(t1, t2 time.Time, loc *time.Location) bool {
	nextDay := t1.In(loc).AddDate(0, 0, 1)
	return IsSameDay(nextDay, t2, loc)
}

// DaysBetween calculates the number of calendar day boundaries between two
// times. Negative when t2 is before t1. DST makes some local days 23 or 25
// hours long, so the quotient is rounded rather than truncated.
func DaysBetween(t1, t2 time.Time, loc *time.Location) int {
	a1 := StartOfDay(t1, loc)
	a2 := StartOfDay(t2, loc)
	return int(math.Round(a2.Sub(a1).Hours() / 24))
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in the given location.
func FormatDateStr(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) in the given location.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, loc)
}
