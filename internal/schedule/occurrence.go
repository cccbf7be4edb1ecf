// Package schedule computes birthday occurrence instants and derives the
// idempotency keys that identify them. Everything here is pure: same inputs,
// same outputs, no clock reads.
package schedule

import (
	"fmt"
	"time"
)

// DefaultAnchorHour is the local wall-clock hour notifications fire at.
const DefaultAnchorHour = 9

// Calculator computes the next occurrence of a yearly calendar date.
type Calculator struct {
	anchorHour int
}

// NewCalculator returns a Calculator firing at the given local hour.
func NewCalculator(anchorHour int) (*Calculator, error) {
	if anchorHour < 0 || anchorHour > 23 {
		return nil, fmt.Errorf("anchor hour %d out of range [0,23]", anchorHour)
	}
	return &Calculator{anchorHour: anchorHour}, nil
}

// NextOccurrence returns the earliest instant, in UTC, at which the subject's
// birth month/day falls on the anchor hour in loc, strictly after `after`.
//
// Feb 29 birthdays map to Feb 28 in non-leap target years. That is a policy
// choice, not an accident of date arithmetic, and it is pinned by tests.
//
// The wall-clock anchor is resolved against the timezone rules in effect on
// the target date, so a DST change between now and then cannot shift the
// local firing hour.
func (c *Calculator) NextOccurrence(birthDate time.Time, loc *time.Location, after time.Time) time.Time {
	// Start one year early: when loc is ahead of UTC, the local year at
	// `after` can already be past this year's occurrence while an earlier
	// candidate still qualifies.
	year := after.In(loc).Year() - 1
	for y := year; ; y++ {
		occ := c.occurrenceInYear(birthDate, loc, y)
		if occ.After(after) {
			return occ
		}
	}
}

// occurrenceInYear places the birthday anchor in the given year and timezone.
func (c *Calculator) occurrenceInYear(birthDate time.Time, loc *time.Location, year int) time.Time {
	month, day := birthDate.Month(), birthDate.Day()
	if month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, month, day, c.anchorHour, 0, 0, 0, loc).UTC()
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
