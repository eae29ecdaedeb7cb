// Package calendar maps timestamps onto course weeks.
//
// Two numbering schemes coexist. WeekNo counts whole calendar days since the
// course start and drives submission keys and results windows. ISOWeekOffset
// subtracts ISO week-of-year numbers and drives the personal timeline. They
// disagree across a year boundary and are kept apart on purpose.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata" // course zones must load on hosts without zoneinfo
)

// DateLayout is the layout course start dates are configured in.
const DateLayout = "2006-01-02"

// Course describes the course calendar: a start Monday in a time zone.
type Course struct {
	start time.Time
	loc   *time.Location
}

// New returns a course starting at midnight of start's date in loc.
func New(start time.Time, loc *time.Location) Course {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := start.In(loc).Date()
	return Course{start: time.Date(y, m, d, 0, 0, 0, 0, loc), loc: loc}
}

// Parse builds a course from a YYYY-MM-DD date and an IANA zone name.
func Parse(date, zone string) (Course, error) {
	loc := time.Local
	if zone != "" {
		var err error
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return Course{}, fmt.Errorf("load time zone %q: %w", zone, err)
		}
	}
	start, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return Course{}, fmt.Errorf("parse course start %q: %w", date, err)
	}
	return New(start, loc), nil
}

// Start returns the first day of the course.
func (c Course) Start() time.Time { return c.start }

// Location returns the course time zone.
func (c Course) Location() *time.Location { return c.loc }

// WeekNo returns floor(days since start / 7) + 1 for t. Dates before the
// course start report week 1.
func (c Course) WeekNo(t time.Time) int {
	days := civilDays(c.start, t.In(c.loc))
	if days < 0 {
		return 1
	}
	return days/7 + 1
}

// Window returns the half-open range [from, to) covering week.
func (c Course) Window(week int) (from, to time.Time) {
	from = c.start.AddDate(0, 0, 7*(week-1))
	to = c.start.AddDate(0, 0, 7*week)
	return from, to
}

// InWindow reports whether t falls inside week's window.
func (c Course) InWindow(t time.Time, week int) bool {
	from, to := c.Window(week)
	return !t.Before(from) && t.Before(to)
}

// ISOWeekOffset returns t's ISO week-of-year minus the course start's ISO
// week-of-year, plus one. The year is ignored.
func (c Course) ISOWeekOffset(t time.Time) int {
	_, startWeek := c.start.ISOWeek()
	_, week := t.In(c.loc).ISOWeek()
	return week - startWeek + 1
}

// civilDays counts calendar days from a to b, ignoring clock time and DST.
func civilDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours()) / 24
}
