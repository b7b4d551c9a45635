package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestParseDateValid(t *testing.T) {
	d := day(t, "2024-02-29") // leap year
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.February, d.Month())
	assert.Equal(t, 29, d.Day())
	assert.Equal(t, PantryZone(), d.Location())
}

func TestParseDateRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"2024-02-30", // does not exist
		"2023-02-29", // not a leap year
		"2024-13-01",
		"2024-2-3",     // not zero padded
		"02/15/2024",   // wrong separator
		"2024-02-15T00:00:00Z",
		"tomorrow",
	}
	for _, s := range bad {
		_, err := ParseDate(s)
		assert.Error(t, err, "expected %q to be rejected", s)
	}
}

func TestParseDateStableAcrossHostTimezones(t *testing.T) {
	// A date string resolves to the same calendar day no matter what
	// zone the host clock reports, including on DST transition days.
	for _, s := range []string{"2024-03-10", "2024-11-03", "2024-06-15"} {
		d, err := ParseDate(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.Format(DateLayout))

		// Viewing the same instant from another zone must not change
		// the computed pantry-zone day.
		elsewhere := d.In(time.UTC)
		assert.Equal(t, s, elsewhere.In(PantryZone()).Format(DateLayout))
	}
}

func TestSetPantryZone(t *testing.T) {
	orig := pantryZone
	defer func() { pantryZone = orig }()

	require.NoError(t, SetPantryZone("America/Chicago"))
	assert.Equal(t, "America/Chicago", PantryZone().String())

	// An unknown zone is rejected and the current zone kept.
	assert.Error(t, SetPantryZone("Not/AZone"))
	assert.Equal(t, "America/Chicago", PantryZone().String())
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(day(t, "2024-01-10")))
	assert.Equal(t, 29, DaysInMonth(day(t, "2024-02-10")))
	assert.Equal(t, 28, DaysInMonth(day(t, "2023-02-10")))
	assert.Equal(t, 30, DaysInMonth(day(t, "2024-06-10")))
	assert.Equal(t, 31, DaysInMonth(day(t, "2024-12-31")))
}

func TestIsWithinBookableWindowSameMonth(t *testing.T) {
	today := day(t, "2024-07-10")
	assert.True(t, IsWithinBookableWindow(day(t, "2024-07-01"), today))
	assert.True(t, IsWithinBookableWindow(day(t, "2024-07-10"), today))
	assert.True(t, IsWithinBookableWindow(day(t, "2024-07-31"), today))

	// Other months are out when today is mid-month.
	assert.False(t, IsWithinBookableWindow(day(t, "2024-08-01"), today))
	assert.False(t, IsWithinBookableWindow(day(t, "2024-06-30"), today))
	assert.False(t, IsWithinBookableWindow(day(t, "2024-09-01"), today))
}

func TestIsWithinBookableWindowFinalWeek(t *testing.T) {
	cases := []struct {
		today  string
		target string
		want   bool
	}{
		// 31-day month: final week is the 25th through the 31st.
		{"2024-07-25", "2024-08-15", true},
		{"2024-07-24", "2024-08-15", false},
		{"2024-07-31", "2024-08-01", true},

		// 30-day month: final week starts on the 24th.
		{"2024-06-24", "2024-07-04", true},
		{"2024-06-23", "2024-07-04", false},

		// February, non-leap: final week starts on the 22nd.
		{"2023-02-22", "2023-03-10", true},
		{"2023-02-21", "2023-03-10", false},

		// February, leap: final week starts on the 23rd.
		{"2024-02-23", "2024-03-10", true},
		{"2024-02-22", "2024-03-10", false},

		// Year rollover.
		{"2024-12-25", "2025-01-05", true},
		{"2024-12-20", "2025-01-05", false},

		// Never more than one month ahead, even in the final week.
		{"2024-07-31", "2024-09-01", false},
	}
	for _, tc := range cases {
		got := IsWithinBookableWindow(day(t, tc.target), day(t, tc.today))
		assert.Equal(t, tc.want, got, "today=%s target=%s", tc.today, tc.target)
	}
}

func TestIsWithinBookableWindowZoneIndependentInputs(t *testing.T) {
	// The same (target, today) pair expressed as instants in other
	// zones yields the same answer.
	today := day(t, "2024-07-26")
	target := day(t, "2024-08-02")
	want := IsWithinBookableWindow(target, today)

	assert.Equal(t, want, IsWithinBookableWindow(target.In(time.UTC), today.In(time.UTC)))

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, want, IsWithinBookableWindow(target.In(tokyo), today.In(tokyo)))
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(day(t, "2024-02-14"))
	assert.Equal(t, "2024-02-01", first)
	assert.Equal(t, "2024-02-29", last)

	first, last = MonthBounds(day(t, "2024-12-31"))
	assert.Equal(t, "2024-12-01", first)
	assert.Equal(t, "2024-12-31", last)
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2024-07", MonthKey(day(t, "2024-07-09")))
}
