package utils

import (
	"strings"
	"time"
)

const (
	LayoutDate     = "2006-01-02"
	layoutDateTime = "2006-01-02 15:04"
)

// FormatDate formats t as YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(locOrUTC(loc)).Format(LayoutDate)
}

// FormatDateTime formats t as "YYYY-MM-DD HH:MM" in loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(locOrUTC(loc)).Format(layoutDateTime)
}

// ParseDateTime parses "YYYY-MM-DD HH:MM" in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(layoutDateTime, strings.TrimSpace(s), locOrUTC(loc))
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(locOrUTC(loc))
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayBefore reports whether a's calendar day is before b's, both read in loc.
func DayBefore(a, b time.Time, loc *time.Location) bool {
	return StartOfDay(a, loc).Before(StartOfDay(b, loc))
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
