package utils

import (
	"fmt"
	"os"
	"time"
)

// DateLayout is the only accepted wire format for calendar dates.
const DateLayout = "2006-01-02"

// pantryZone anchors every piece of calendar math in the organization's
// fixed local timezone. A date string must resolve to the same calendar
// day no matter what timezone the server host runs in.
var pantryZone *time.Location

func init() {
	name := os.Getenv("PANTRY_TIMEZONE")
	if name == "" {
		name = "America/New_York"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Eastern standard offset as a last resort; DST edges will be
		// off by an hour but calendar days stay stable.
		loc = time.FixedZone("EST", -5*60*60)
	}
	pantryZone = loc
}

// PantryZone returns the organization's fixed local timezone.
func PantryZone() *time.Location {
	return pantryZone
}

// SetPantryZone repoints calendar math at the named IANA zone. Called
// once at startup after configuration is loaded; the init default only
// covers code that runs before then (.env files are not visible to
// init).
func SetPantryZone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("invalid pantry timezone %q: %w", name, err)
	}
	pantryZone = loc
	return nil
}

// Today returns the current calendar day in the pantry zone, truncated
// to midnight.
func Today() time.Time {
	now := time.Now().In(pantryZone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, pantryZone)
}

// TodayString returns today's date in wire format.
func TodayString() string {
	return Today().Format(DateLayout)
}

// ParseDate parses a strict YYYY-MM-DD string into midnight of that day
// in the pantry zone. Anything that does not round-trip through the
// layout (e.g. "2024-02-30", "2024-2-3") is rejected before it can
// reach the database.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, pantryZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: must be YYYY-MM-DD", s)
	}
	if t.Format(DateLayout) != s {
		return time.Time{}, fmt.Errorf("invalid date %q: must be YYYY-MM-DD", s)
	}
	return t, nil
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, pantryZone)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthKey renders t's month as YYYY-MM, the format used by the
// monthly-count cache column.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// MonthBounds returns the first and last day of t's month in wire
// format, suitable for BETWEEN filters over date columns.
func MonthBounds(t time.Time) (string, string) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, pantryZone)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout)
}

// IsWithinBookableWindow reports whether target is a bookable date as
// seen from today: any day in today's calendar month, or any day in the
// immediately following month once today is inside the final 7 days of
// its month. The window is computed from actual days-in-month, so it
// self-adjusts for 28/29/30/31-day months.
func IsWithinBookableWindow(target, today time.Time) bool {
	target = target.In(pantryZone)
	today = today.In(pantryZone)

	if SameMonth(target, today) {
		return true
	}

	firstOfNext := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, pantryZone)
	if !SameMonth(target, firstOfNext) {
		return false
	}
	return today.Day() >= DaysInMonth(today)-6
}
