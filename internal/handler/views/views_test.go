package views

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/cohortlab/weeklysurvey/internal/i18n"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/results"
	"github.com/cohortlab/weeklysurvey/internal/survey"
	"github.com/cohortlab/weeklysurvey/internal/timeline"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	ctx := model.ContextWithBasePath(context.Background(), "/survey")
	ctx = model.ContextWithCSRFToken(ctx, "tok")
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestSection(t *testing.T) {
	q := func(chart model.ChartKind, prompt string) model.Question {
		return model.Question{No: 1, Prompt: prompt, Widget: model.WidgetText, Chart: chart}
	}
	tests := []struct {
		name    string
		sec     ResultSection
		want    []string
		notWant []string
	}{
		{
			name:    "no chart kind",
			sec:     ResultSection{Section: results.Section{Question: q(model.ChartNone, "Your plans?"), Header: "Plans"}},
			want:    []string{"<h3>Plans</h3>", "<blockquote>Your plans?</blockquote>"},
			notWant: []string{"No data", "<iframe"},
		},
		{
			name: "bar without data",
			sec:  ResultSection{Section: results.Section{Question: q(model.ChartBar, "Motivation")}},
			want: []string{"<blockquote>Motivation</blockquote>", "<p>No data</p>"},
		},
		{
			name: "bar chart",
			sec:  ResultSection{Section: results.Section{Question: q(model.ChartBar, "Motivation")}, Chart: []byte(`<div id="c">"x"</div>`)},
			want: []string{`<iframe class="chart"`, `srcdoc="&lt;div id=&#34;c&#34;&gt;&#34;x&#34;&lt;/div&gt;"`},
		},
		{
			name: "word cloud without answers",
			sec:  ResultSection{Section: results.Section{Question: q(model.ChartWordCloud, "Goals?")}},
			want: []string{"<p>No data</p>"},
		},
		{
			name: "word cloud that failed to render",
			sec: ResultSection{Section: results.Section{
				Question: q(model.ChartWordCloud, "Goals?"),
				Answers:  []string{"Ann's <b>plan</b>"},
			}},
			want:    []string{"<li>Ann&#39;s &lt;b&gt;plan&lt;/b&gt;</li>", "No word cloud to show."},
			notWant: []string{"<iframe"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderString(t, section(tt.sec))
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("missing %q in:\n%s", w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("unexpected %q in:\n%s", w, got)
				}
			}
		})
	}
}

func TestAppPageLinksUseBasePath(t *testing.T) {
	got := renderString(t, GoalsPage(GoalsData{
		Header: Header{Session: &model.Session{User: &model.User{Name: "Ann"}}, Week: 3, Active: MenuPreResults},
		Rows:   []timeline.Row{{Week: 1, PreGoals: "loops", PrePlans: timeline.NoData, FollowUp: timeline.NoData}},
		Notices: []Notice{
			{Kind: NoticeSuccess, Text: "Saved", AutoClear: true},
			{Kind: NoticeError, Text: "Oops"},
		},
	}))
	for _, want := range []string{
		`<a href="/survey/results/pre" class="active">`,
		`<a href="/survey/">`,
		`action="/survey/logout"`,
		`<input type="hidden" name="csrf_token" value="tok">`,
		"Welcome: Ann to Week 3",
		`<div class="notice notice-success" data-autoclear="5000" role="status">Saved</div>`,
		`<div class="notice notice-error" role="status">Oops</div>`,
		"<td>loops</td><td>No data</td>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestSurveyFields(t *testing.T) {
	got := renderString(t, SurveyPage(SurveyData{
		Form: survey.Form{Type: model.SurveyPre, Week: 1, Fields: []survey.Field{
			{Question: model.Question{No: 1, Prompt: "Motivation", Widget: model.WidgetSlider}, Header: "Mood", Choices: []string{"Low", "High"}},
			{Question: model.Question{No: 2, Prompt: "Objective", Widget: model.WidgetObjective}},
			{Question: model.Question{No: 3, Prompt: "Helpers", Widget: model.WidgetMultiSelect}, Choices: []string{"Notes"}},
		}},
	}))
	for _, want := range []string{
		"Submit Pre-survey",
		`action="/survey/survey/pre"`,
		"<h3>Mood</h3>",
		`<input type="radio" name="q1" value="Low" checked> Low`,
		`<input type="radio" name="q1" value="High"> High`,
		"<p>No options this week.</p>",
		`<input type="checkbox" name="q3" value="Notes"> Notes`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}
