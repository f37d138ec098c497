// Package dates holds the calendar arithmetic shared by the query engine,
// the analytics aggregator and the calendar grid. Every helper works in the
// location of the value it is given, so callers convert to the user's
// location first.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Calendar fixes the location and the first day of the week.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

func New(loc *time.Location, weekStart time.Weekday) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{Location: loc, WeekStart: weekStart}
}

// In converts t into the calendar's location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.loc())
}

func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = c.In(t)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last representable instant of t's day.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func (c Calendar) StartOfWeek(t time.Time) time.Time {
	day := c.StartOfDay(t)
	diff := (int(day.Weekday()) - int(c.WeekStart) + 7) % 7
	return day.AddDate(0, 0, -diff)
}

func (c Calendar) EndOfWeek(t time.Time) time.Time {
	return c.EndOfDay(c.StartOfWeek(t).AddDate(0, 0, 6))
}

func (c Calendar) StartOfMonth(t time.Time) time.Time {
	t = c.In(t)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (c Calendar) EndOfMonth(t time.Time) time.Time {
	return c.StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// SameDay reports whether a and b fall on the same calendar day.
func (c Calendar) SameDay(a, b time.Time) bool {
	a, b = c.In(a), c.In(b)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (c Calendar) SameWeek(a, b time.Time) bool {
	return c.StartOfWeek(a).Equal(c.StartOfWeek(b))
}

// EachDay lists the starts of every day in [start, end].
func (c Calendar) EachDay(start, end time.Time) []time.Time {
	day := c.StartOfDay(start)
	last := c.StartOfDay(end)
	var days []time.Time
	for !day.After(last) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// DaysBetween counts whole days from start to end, truncated toward zero.
func DaysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

// ParseDay parses YYYY-MM-DD in the calendar's location.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, c.loc())
}

// ParseMonth parses YYYY-MM in the calendar's location.
func (c Calendar) ParseMonth(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01", s, c.loc())
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// ParseWeekday accepts english weekday names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
