package calendar

import (
	"testing"
	"time"
)

func testCourse(t *testing.T) Course {
	t.Helper()
	c, err := Parse("2022-10-03", "Europe/London")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestWeekNoOnWeekBoundaries(t *testing.T) {
	c := testCourse(t)
	for w := 1; w <= 30; w++ {
		d := c.Start().AddDate(0, 0, 7*(w-1))
		if got := c.WeekNo(d); got != w {
			t.Errorf("WeekNo(start + %d days) = %d, want %d", 7*(w-1), got, w)
		}
	}
}

func TestWeekNo(t *testing.T) {
	c := testCourse(t)
	loc := c.Location()

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"first day", time.Date(2022, 10, 3, 9, 0, 0, 0, loc), 1},
		{"last day of week one", time.Date(2022, 10, 9, 23, 59, 0, 0, loc), 1},
		{"second monday", time.Date(2022, 10, 10, 0, 0, 0, 0, loc), 2},
		{"across DST change", time.Date(2022, 10, 31, 0, 30, 0, 0, loc), 5},
		{"before start", time.Date(2022, 9, 30, 12, 0, 0, 0, loc), 1},
		{"utc instant late sunday", time.Date(2022, 10, 9, 23, 30, 0, 0, time.UTC), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.WeekNo(tt.at); got != tt.want {
				t.Errorf("WeekNo(%v) = %d, want %d", tt.at, got, tt.want)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	c := testCourse(t)
	from, to := c.Window(2)
	if !from.Equal(time.Date(2022, 10, 10, 0, 0, 0, 0, c.Location())) {
		t.Errorf("from = %v", from)
	}
	if !to.Equal(time.Date(2022, 10, 17, 0, 0, 0, 0, c.Location())) {
		t.Errorf("to = %v", to)
	}
	if !c.InWindow(from, 2) {
		t.Error("window should include its start")
	}
	if c.InWindow(to, 2) {
		t.Error("window should exclude its end")
	}
	if !c.InWindow(to.Add(-time.Millisecond), 2) {
		t.Error("window should include the last instant before its end")
	}
}

func TestISOWeekOffset(t *testing.T) {
	c := testCourse(t)
	loc := c.Location()

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"start week", time.Date(2022, 10, 5, 12, 0, 0, 0, loc), 1},
		{"third week", time.Date(2022, 10, 20, 12, 0, 0, 0, loc), 3},
		// ISO week numbers restart in January; the offset goes negative.
		{"next year", time.Date(2023, 1, 10, 12, 0, 0, 0, loc), 2 - 40 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ISOWeekOffset(tt.at); got != tt.want {
				t.Errorf("ISOWeekOffset(%v) = %d, want %d", tt.at, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("03/10/2022", ""); err == nil {
		t.Error("expected error for bad date layout")
	}
	if _, err := Parse("2022-10-03", "Mars/Olympus"); err == nil {
		t.Error("expected error for unknown zone")
	}
}
