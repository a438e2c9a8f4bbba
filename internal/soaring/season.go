package soaring

import (
	"fmt"
	"time"
)

// MonthDay is a calendar day without a year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	var m, d int
	if _, err := fmt.Sscanf(s, "%d-%d", &m, &d); err != nil {
		return MonthDay{}, fmt.Errorf("invalid month-day %q: %w", s, err)
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return MonthDay{}, fmt.Errorf("invalid month-day %q", s)
	}
	return MonthDay{Month: time.Month(m), Day: d}, nil
}

func (md MonthDay) before(o MonthDay) bool {
	if md.Month != o.Month {
		return md.Month < o.Month
	}
	return md.Day < o.Day
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Season decides whether a date is in the winter flying season.
// Winter runs strictly after WinterStart until strictly before WinterEnd.
type Season struct {
	WinterStart MonthDay
	WinterEnd   MonthDay
}

// DefaultSeason is winter from November 1st to March 15th.
func DefaultSeason() Season {
	return Season{
		WinterStart: MonthDay{Month: time.November, Day: 1},
		WinterEnd:   MonthDay{Month: time.March, Day: 15},
	}
}

// IsWinter reports whether t (in its own location) falls in winter. The
// season may wrap the new year (Nov 1 to Mar 15) or not (Jun 1 to Sep 1).
func (s Season) IsWinter(t time.Time) bool {
	today := MonthDay{Month: t.Month(), Day: t.Day()}
	if s.WinterStart.before(s.WinterEnd) {
		return s.WinterStart.before(today) && today.before(s.WinterEnd)
	}
	return today.before(s.WinterEnd) || s.WinterStart.before(today)
}
