// Package timeline builds a user's weekly goals/plans table from their own
// pre- and post-survey answers.
package timeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cohortlab/weeklysurvey/internal/calendar"
	"github.com/cohortlab/weeklysurvey/internal/model"
)

// Cell values with special meaning.
const (
	Placeholder = "-"
	NoData      = "No data"
)

// Fields names the answers shown in the table.
type Fields struct {
	PreGoals  string
	PrePlans  string
	PostPlans string
}

// DefaultFields are the question ids of the standard catalog.
var DefaultFields = Fields{PreGoals: "q5", PrePlans: "q6", PostPlans: "q19"}

// Row is one line of the table.
type Row struct {
	Week     int
	PreGoals string
	PrePlans string
	FollowUp string
}

type entry struct {
	week  int
	cells []string
}

func cell(r model.Response, id string) string {
	a, ok := r[id]
	if !ok {
		return Placeholder
	}
	return a.String()
}

// entries maps submissions to their table week. The week is the submission
// date's ISO week relative to the course start's, not the course week.
func entries(course calendar.Course, subs []model.Submission, ids ...string) []entry {
	out := make([]entry, 0, len(subs))
	for _, s := range subs {
		e := entry{week: course.ISOWeekOffset(s.Time())}
		for _, id := range ids {
			e.cells = append(e.cells, cell(s.Response, id))
		}
		out = append(out, e)
	}
	return out
}

func noData(week, n int) []entry {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = NoData
	}
	return []entry{{week: week, cells: cells}}
}

func fill(n int) []string {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = Placeholder
	}
	return cells
}

// Build outer-joins the pre and post entries on week, sorted by week. A
// survey type with no submissions at all contributes a single "No data" row
// for currentWeek.
func Build(course calendar.Course, f Fields, pre, post []model.Submission, currentWeek int) []Row {
	preRows := entries(course, pre, f.PreGoals, f.PrePlans)
	if len(preRows) == 0 {
		preRows = noData(currentWeek, 2)
	}
	postRows := entries(course, post, f.PostPlans)
	if len(postRows) == 0 {
		postRows = noData(currentWeek, 1)
	}

	var weeks []int
	for _, e := range append(slices.Clone(preRows), postRows...) {
		if !slices.Contains(weeks, e.week) {
			weeks = append(weeks, e.week)
		}
	}
	slices.Sort(weeks)

	var rows []Row
	for _, w := range weeks {
		left := matching(preRows, w, 2)
		right := matching(postRows, w, 1)
		for _, l := range left {
			for _, r := range right {
				rows = append(rows, Row{Week: w, PreGoals: l[0], PrePlans: l[1], FollowUp: r[0]})
			}
		}
	}
	return rows
}

// matching returns the cells of entries in week w, or a row of placeholders
// when there are none.
func matching(es []entry, w, n int) [][]string {
	var out [][]string
	for _, e := range es {
		if e.week == w {
			out = append(out, e.cells)
		}
	}
	if len(out) == 0 {
		out = append(out, fill(n))
	}
	return out
}

// Store is the persistence the service needs.
type Store interface {
	ListUserSubmissions(ctx context.Context, t model.SurveyType, userID string) ([]model.Submission, error)
}

// Service loads timelines.
type Service struct {
	store  Store
	course calendar.Course
	fields Fields
	now    func() time.Time
}

// New creates a timeline service.
func New(s Store, course calendar.Course, f Fields) *Service {
	return &Service{store: s, course: course, fields: f, now: time.Now}
}

// Rows returns the user's timeline.
func (s *Service) Rows(ctx context.Context, userID string) ([]Row, error) {
	pre, err := s.store.ListUserSubmissions(ctx, model.SurveyPre, userID)
	if err != nil {
		return nil, fmt.Errorf("list pre-survey submissions: %w", err)
	}
	post, err := s.store.ListUserSubmissions(ctx, model.SurveyPost, userID)
	if err != nil {
		return nil, fmt.Errorf("list post-survey submissions: %w", err)
	}
	return Build(s.course, s.fields, pre, post, s.course.WeekNo(s.now())), nil
}
