package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewCalculatorRejectsBadAnchor(t *testing.T) {
	_, err := NewCalculator(-1)
	require.Error(t, err)
	_, err = NewCalculator(24)
	require.Error(t, err)
	_, err = NewCalculator(0)
	require.NoError(t, err)
}

func TestNextOccurrenceLeapDayPolicy(t *testing.T) {
	calc, err := NewCalculator(9)
	require.NoError(t, err)

	birth := date(1990, time.February, 29)

	// Next after 2023-03-01: 2024 is a leap year, so Feb 29 survives.
	after := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	got := calc.NextOccurrence(birth, time.UTC, after)
	assert.Equal(t, time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), got)

	// Next after that occurrence: 2025 is not a leap year, Feb 29 maps to Feb 28.
	got = calc.NextOccurrence(birth, time.UTC, got)
	assert.Equal(t, time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrenceStrictlyAfter(t *testing.T) {
	calc, err := NewCalculator(9)
	require.NoError(t, err)

	birth := date(1985, time.June, 15)
	occurrence := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)

	// Exactly at the occurrence instant: must roll over to next year.
	got := calc.NextOccurrence(birth, time.UTC, occurrence)
	assert.Equal(t, time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC), got)

	// One second earlier: this year's occurrence still qualifies.
	got = calc.NextOccurrence(birth, time.UTC, occurrence.Add(-time.Second))
	assert.Equal(t, occurrence, got)
}

func TestNextOccurrenceResolvesDSTAtTargetDate(t *testing.T) {
	calc, err := NewCalculator(9)
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	after := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	// July 4 falls in EDT (UTC-4): 09:00 local is 13:00 UTC.
	got := calc.NextOccurrence(date(1980, time.July, 4), ny, after)
	assert.Equal(t, time.Date(2025, time.July, 4, 13, 0, 0, 0, time.UTC), got)

	// January 15 falls in EST (UTC-5): 09:00 local is 14:00 UTC.
	got = calc.NextOccurrence(date(1980, time.January, 15), ny, after)
	assert.Equal(t, time.Date(2025, time.January, 15, 14, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrenceAheadOfUTC(t *testing.T) {
	calc, err := NewCalculator(9)
	require.NoError(t, err)

	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	// At this UTC instant Auckland is already into 1 January of the next
	// year, and its 09:00 occurrence on that date has passed in UTC terms.
	birth := date(1992, time.January, 1)
	after := time.Date(2025, time.December, 31, 22, 0, 0, 0, time.UTC)

	got := calc.NextOccurrence(birth, auckland, after)
	assert.True(t, got.After(after))
	local := got.In(auckland)
	assert.Equal(t, time.January, local.Month())
	assert.Equal(t, 1, local.Day())
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 2027, local.Year())
}

func TestNextOccurrenceLocalDayMatchesBirthday(t *testing.T) {
	calc, err := NewCalculator(9)
	require.NoError(t, err)

	zones := []string{"UTC", "America/New_York", "Pacific/Auckland", "Asia/Kolkata"}
	birth := date(1970, time.October, 21)
	after := time.Date(2025, time.March, 3, 17, 42, 0, 0, time.UTC)

	for _, name := range zones {
		loc, err := time.LoadLocation(name)
		require.NoError(t, err)

		got := calc.NextOccurrence(birth, loc, after)
		require.True(t, got.After(after), "zone %s", name)

		local := got.In(loc)
		assert.Equal(t, time.October, local.Month(), "zone %s", name)
		assert.Equal(t, 21, local.Day(), "zone %s", name)
		assert.Equal(t, 9, local.Hour(), "zone %s", name)
	}
}

func TestNextOccurrenceDeterministic(t *testing.T) {
	calc, err := NewCalculator(9)
	require.NoError(t, err)

	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	birth := date(1969, time.December, 28)
	after := time.Date(2025, time.August, 31, 12, 0, 0, 0, time.UTC)

	first := calc.NextOccurrence(birth, loc, after)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, calc.NextOccurrence(birth, loc, after))
	}
}
