package domain

import (
	"fmt"
	"time"
)

// DefaultTimezone is the reference timezone for day boundaries.
const DefaultTimezone = "Asia/Kolkata"

const dayLayout = "2006-01-02"

// Calendar buckets instants into calendar days of a single location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the named IANA location; empty means DefaultTimezone.
func NewCalendar(name string) (Calendar, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return Calendar{loc: loc}, nil
}

// CalendarIn wraps an already loaded location.
func CalendarIn(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's timezone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Day formats t as YYYY-MM-DD in the calendar's timezone.
func (c Calendar) Day(t time.Time) string {
	return t.In(c.Location()).Format(dayLayout)
}

// EndOfDay returns the last millisecond of t's day in the calendar's timezone.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(999*time.Millisecond), c.Location())
}

// ParseDay validates a YYYY-MM-DD day string.
func (c Calendar) ParseDay(day string) (string, error) {
	t, err := time.ParseInLocation(dayLayout, day, c.Location())
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, day)
	}
	return t.Format(dayLayout), nil
}
