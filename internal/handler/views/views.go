// Package views renders the app's HTML pages as templ components.
package views

//go:generate templ generate

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"github.com/cohortlab/weeklysurvey/internal/i18n"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/results"
	"github.com/cohortlab/weeklysurvey/internal/survey"
	"github.com/cohortlab/weeklysurvey/internal/timeline"
)

// NoticeKind selects a notice style.
type NoticeKind string

const (
	NoticeError   NoticeKind = "error"
	NoticeWarning NoticeKind = "warning"
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
)

// Notice is a message box shown above the page content.
type Notice struct {
	Kind NoticeKind
	Text string
	// AutoClear removes the notice in the browser after five seconds.
	AutoClear bool
}

// Menu entries of the authenticated sidebar.
const (
	MenuGoals       = "/"
	MenuPreSubmit   = "/survey/pre"
	MenuPreResults  = "/results/pre"
	MenuPostSubmit  = "/survey/post"
	MenuPostResults = "/results/post"
)

type menuEntry struct{ path, msgID string }

var (
	appMenu = []menuEntry{
		{MenuGoals, "PageGoals"},
		{MenuPreSubmit, "PagePreSubmit"},
		{MenuPreResults, "PagePreResults"},
		{MenuPostSubmit, "PagePostSubmit"},
		{MenuPostResults, "PagePostResults"},
	}
	publicMenu = []menuEntry{
		{"/login", "MenuLogin"},
		{"/signup", "MenuSignUp"},
	}
)

// Header is the authenticated page frame data.
type Header struct {
	Session *model.Session
	Week    int
	Active  string
}

// LoginData is the login page state.
type LoginData struct {
	Email     string
	ShowReset bool
	Notices   []Notice
}

// SignUpData is the sign-up page state.
type SignUpData struct {
	Email   string
	Name    string
	Group   string
	Notices []Notice
}

// ResetData is the new-password page state.
type ResetData struct {
	Token   string
	Valid   bool
	Notices []Notice
}

// GoalsData is the weekly goals/plans page state.
type GoalsData struct {
	Header  Header
	Rows    []timeline.Row
	Notices []Notice
}

// SurveyData is the survey submission page state.
type SurveyData struct {
	Header  Header
	Form    survey.Form
	Notices []Notice
}

// ResultSection is a results section with its rendered chart document.
type ResultSection struct {
	results.Section
	Chart []byte
}

// ResultsData is the results page state.
type ResultsData struct {
	Header      Header
	Report      *results.Report
	CurrentWeek int
	Sections    []ResultSection
}

// appURL prefixes an app path with the base path.
func appURL(ctx context.Context, path string) templ.SafeURL {
	return templ.SafeURL(model.BasePathFromContext(ctx) + path)
}

func welcome(ctx context.Context, h Header) string {
	name := ""
	if h.Session != nil && h.Session.User != nil {
		name = h.Session.User.Name
	}
	return i18n.Td(ctx, "Welcome", map[string]any{"Name": name, "Week": h.Week})
}

func surveyTitle(ctx context.Context, t model.SurveyType) string {
	if t == model.SurveyPost {
		return i18n.T(ctx, "TitleSubmitPost")
	}
	return i18n.T(ctx, "TitleSubmitPre")
}

func resultsTitle(ctx context.Context, r *results.Report) string {
	id := "ResultsTitlePre"
	if r.Type == model.SurveyPost {
		id = "ResultsTitlePost"
	}
	return i18n.Tp(ctx, id, r.Count, map[string]any{"Group": r.Group})
}

// cell translates the timeline placeholder and passes answers through.
func cell(ctx context.Context, s string) string {
	if s == timeline.NoData {
		return i18n.T(ctx, "NoData")
	}
	return s
}

func groups() []string {
	out := make([]string, 0, model.Groups)
	for g := 1; g <= model.Groups; g++ {
		out = append(out, strconv.Itoa(g))
	}
	return out
}

func weeks(n int) []int {
	out := make([]int, 0, n)
	for w := 1; w <= n; w++ {
		out = append(out, w)
	}
	return out
}
