package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/store"
)

func TestActionNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SeeSubmitPage(model.SurveyPre), "see_submit_pre_survey_page"},
		{SeeResultsPage(model.SurveyPost), "see_post_survey_page"},
		{Submit(model.SurveyPost), "submit_post_survey"},
		{SelectWeek(model.SurveyPre, 4), "select_pre_survey_week_4"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestFamily(t *testing.T) {
	tests := map[string]string{
		"login":                      "login",
		"select_pre_survey_week_4":   "select_pre_survey_week",
		"select_post_survey_week_12": "select_post_survey_week",
		"submit_pre_survey":          "submit_pre_survey",
	}
	for in, want := range tests {
		if got := family(in); got != want {
			t.Errorf("family(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogAppends(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	m := metrics.New(prometheus.NewRegistry())
	l := New(s, m)
	l.now = func() time.Time { return time.UnixMilli(1665000000000) }

	ctx := context.Background()
	l.Log(ctx, Login, "u1")
	l.Log(ctx, SelectWeek(model.SurveyPre, 2), "u1")
	l.Log(ctx, SelectWeek(model.SurveyPre, 3), "u1")

	acts, err := s.ListActivities(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("got %d activities, want 3", len(acts))
	}
	if acts[0].Action != "login" || acts[0].Timestamp != 1665000000000 || acts[0].ID == "" {
		t.Errorf("unexpected record: %+v", acts[0])
	}
	if got := testutil.ToFloat64(m.Activities.WithLabelValues("select_pre_survey_week")); got != 2 {
		t.Errorf("select counter = %v, want 2", got)
	}
}

type failingPusher struct{}

func (failingPusher) PushActivity(context.Context, model.Activity) (string, error) {
	return "", errors.New("store unavailable")
}

func TestLogSwallowsErrors(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	l := New(failingPusher{}, m)
	l.Log(context.Background(), Logout, "u1")
	if got := testutil.ToFloat64(m.Activities.WithLabelValues("logout")); got != 0 {
		t.Errorf("counter incremented for a failed write: %v", got)
	}
}
