// Package survey builds the weekly survey forms and stores submissions.
package survey

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cohortlab/weeklysurvey/internal/activity"
	"github.com/cohortlab/weeklysurvey/internal/calendar"
	"github.com/cohortlab/weeklysurvey/internal/catalog"
	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
)

// ErrInvalidAnswer is returned for a posted value outside a question's choices.
var ErrInvalidAnswer = errors.New("invalid answer")

// Field is one question as rendered in the form.
type Field struct {
	Question model.Question
	// Header is the category heading shown above the field, empty when the
	// category is the same as the previous field's.
	Header  string
	Choices []string
}

// ID returns the form field name.
func (f Field) ID() string { return f.Question.ID() }

// Form is a survey form for one week.
type Form struct {
	Type   model.SurveyType
	Week   int
	Fields []Field
}

// BuildForm lays out the catalog rows for a survey type in catalog order.
// Objective selects offer the learning objectives of the given week.
func BuildForm(c *catalog.Catalog, t model.SurveyType, week int) Form {
	form := Form{Type: t, Week: week}
	category := ""
	for _, q := range c.Questions(t) {
		f := Field{Question: q}
		if q.Category != category {
			f.Header = q.Category
			category = q.Category
		}
		switch q.Widget {
		case model.WidgetObjective:
			f.Choices = c.Objectives(week)
		case model.WidgetSlider, model.WidgetMultiSelect, model.WidgetText:
			f.Choices = q.Choices
		}
		form.Fields = append(form.Fields, f)
	}
	return form
}

// emptySelection is stored for a multi-select with nothing chosen. The two
// surveys have always stored different shapes here and results depend on it.
func emptySelection(t model.SurveyType) model.Answer {
	if t == model.SurveyPost {
		return model.TextAnswer("")
	}
	return model.ListAnswer(nil)
}

// ParseResponse reads the posted form values into a response. Sliders and
// objective selects left unset take their first choice.
func ParseResponse(form Form, values url.Values) (model.Response, error) {
	resp := make(model.Response, len(form.Fields))
	for _, f := range form.Fields {
		id := f.ID()
		switch f.Question.Widget {
		case model.WidgetText:
			resp[id] = model.TextAnswer(strings.TrimSpace(values.Get(id)))
		case model.WidgetSlider, model.WidgetObjective:
			v, err := single(f, values.Get(id))
			if err != nil {
				return nil, err
			}
			resp[id] = model.TextAnswer(v)
		case model.WidgetMultiSelect:
			var picked []string
			for _, v := range values[id] {
				if !slices.Contains(f.Choices, v) {
					return nil, fmt.Errorf("%w: %s: %q is not a choice", ErrInvalidAnswer, id, v)
				}
				if !slices.Contains(picked, v) {
					picked = append(picked, v)
				}
			}
			if len(picked) == 0 {
				resp[id] = emptySelection(form.Type)
			} else {
				resp[id] = model.ListAnswer(picked)
			}
		}
	}
	return resp, nil
}

func single(f Field, v string) (string, error) {
	if v == "" {
		if len(f.Choices) == 0 {
			return "", nil
		}
		return f.Choices[0], nil
	}
	if !slices.Contains(f.Choices, v) {
		return "", fmt.Errorf("%w: %s: %q is not a choice", ErrInvalidAnswer, f.ID(), v)
	}
	return v, nil
}

// Store is the persistence the service needs.
type Store interface {
	GetSubmission(ctx context.Context, t model.SurveyType, key string) (*model.Submission, error)
	PutSubmission(ctx context.Context, sub model.Submission) error
}

// Service renders and stores the current week's surveys.
type Service struct {
	catalog  *catalog.Catalog
	store    Store
	activity *activity.Logger
	course   calendar.Course
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a survey service. m may be nil.
func New(c *catalog.Catalog, s Store, a *activity.Logger, course calendar.Course, m *metrics.Metrics) *Service {
	return &Service{catalog: c, store: s, activity: a, course: course, metrics: m, now: time.Now}
}

// Form returns the survey form for the current week.
func (s *Service) Form(t model.SurveyType) Form {
	return BuildForm(s.catalog, t, s.course.WeekNo(s.now()))
}

// Submitted reports whether the user already has a submission of type t for
// the current week.
func (s *Service) Submitted(ctx context.Context, t model.SurveyType, userID string) (bool, error) {
	key := model.SubmissionKey(userID, s.course.WeekNo(s.now()))
	sub, err := s.store.GetSubmission(ctx, t, key)
	if err != nil {
		return false, fmt.Errorf("get submission: %w", err)
	}
	return sub != nil, nil
}

// Submit stores the user's answers for the current week, replacing any
// earlier submission for that week.
func (s *Service) Submit(ctx context.Context, t model.SurveyType, userID string, values url.Values) (model.Submission, error) {
	now := s.now()
	form := BuildForm(s.catalog, t, s.course.WeekNo(now))
	resp, err := ParseResponse(form, values)
	if err != nil {
		return model.Submission{}, err
	}
	sub := model.Submission{
		Type:      t,
		Key:       model.SubmissionKey(userID, form.Week),
		UserID:    userID,
		Week:      form.Week,
		Timestamp: now.UnixMilli(),
		Response:  resp,
	}
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return model.Submission{}, fmt.Errorf("put submission: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(string(t)).Inc()
	}
	s.activity.Log(ctx, activity.Submit(t), userID)
	return sub, nil
}
