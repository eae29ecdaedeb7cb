// Package results aggregates a group's survey submissions for one course
// week into chart data.
package results

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cohortlab/weeklysurvey/internal/calendar"
	"github.com/cohortlab/weeklysurvey/internal/catalog"
	"github.com/cohortlab/weeklysurvey/internal/model"
)

// Section is one question on the results page.
type Section struct {
	Question model.Question
	// Header is the short label heading, empty when it repeats the previous
	// section's.
	Header string
	Counts []Count
	// Words and Answers are set for word cloud questions.
	Words   []Count
	Answers []string
}

// NoData reports whether the section has nothing to chart.
func (s Section) NoData() bool {
	switch s.Question.Chart {
	case model.ChartWordCloud:
		return len(s.Answers) == 0
	case model.ChartBar, model.ChartPie, model.ChartHorizontalBar:
		return len(s.Counts) == 0
	case model.ChartNone:
	}
	return true
}

// Report is the results page for one survey type, group and week.
type Report struct {
	Type     model.SurveyType
	Group    string
	Week     int
	Count    int
	Sections []Section
}

// Aggregate builds a section per question in catalog order. Questions
// without a chart kind get a section with a heading and prompt only.
func Aggregate(questions []model.Question, subs []model.Submission) []Section {
	var sections []Section
	label := ""
	for _, q := range questions {
		sec := Section{Question: q}
		if q.ShortLabel != label {
			sec.Header = q.ShortLabel
			label = q.ShortLabel
		}
		col := column(subs, q.ID())
		switch q.Chart {
		case model.ChartBar:
			sec.Counts = Bar(q.Choices, col)
		case model.ChartPie:
			sec.Counts = Pie(col)
		case model.ChartHorizontalBar:
			sec.Counts = HorizontalBar(col)
		case model.ChartWordCloud:
			sec.Answers = Answers(col)
			sec.Words = WordFrequencies(strings.Join(sec.Answers, " "))
		case model.ChartNone:
		}
		sections = append(sections, sec)
	}
	return sections
}

// Store is the persistence the service needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListSubmissions(ctx context.Context, t model.SurveyType) ([]model.Submission, error)
}

// Service produces results reports.
type Service struct {
	catalog *catalog.Catalog
	store   Store
	course  calendar.Course
	now     func() time.Time
}

// New creates a results service.
func New(c *catalog.Catalog, s Store, course calendar.Course) *Service {
	return &Service{catalog: c, store: s, course: course, now: time.Now}
}

// CurrentWeek returns the latest week that can be selected.
func (s *Service) CurrentWeek() int {
	return s.course.WeekNo(s.now())
}

// Report aggregates the submissions of type t made in the given week by
// members of the user's group.
func (s *Service) Report(ctx context.Context, t model.SurveyType, userID string, week int) (*Report, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %s has no record", userID)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	groups := make(map[string]string, len(users))
	for _, m := range users {
		groups[m.ID] = m.Group
	}
	all, err := s.store.ListSubmissions(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	var subs []model.Submission
	for _, sub := range all {
		if groups[sub.UserID] == u.Group && s.course.InWindow(sub.Time(), week) {
			subs = append(subs, sub)
		}
	}

	r := &Report{Type: t, Group: u.Group, Week: week, Count: len(subs)}
	if len(subs) > 0 {
		r.Sections = Aggregate(s.catalog.Questions(t), subs)
	}
	return r, nil
}
