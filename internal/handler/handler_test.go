package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cohortlab/weeklysurvey/internal/account"
	"github.com/cohortlab/weeklysurvey/internal/activity"
	"github.com/cohortlab/weeklysurvey/internal/calendar"
	"github.com/cohortlab/weeklysurvey/internal/catalog"
	appI18n "github.com/cohortlab/weeklysurvey/internal/i18n"
	"github.com/cohortlab/weeklysurvey/internal/identity"
	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/results"
	"github.com/cohortlab/weeklysurvey/internal/store"
	"github.com/cohortlab/weeklysurvey/internal/survey"
	"github.com/cohortlab/weeklysurvey/internal/timeline"
)

const catalogYAML = `
pre_survey:
  - {no: 1, category: Motivation, question: "How motivated are you?", short_question: Motivation, choice_type: select_slider, choice: Low;Medium;High, chart: bar}
  - {no: 3, category: Planning, question: "Which strategies?", short_question: Strategies, choice_type: multiselect, choice: Notes;Videos;Peers, chart: bar-h}
  - {no: 5, category: Planning, question: "Your goals?", short_question: Goals, choice_type: text_input, chart: wordcloud}
  - {no: 6, category: Planning, question: "Your plans?", short_question: Plans, choice_type: text_input}
post_survey:
  - {no: 19, category: Reflection, question: "Next steps?", short_question: Follow-up, choice_type: text_input, chart: wordcloud}
learning_objectives:
  - Variables;Loops
`

const csrfValue = "test-csrf-token"

type testApp struct {
	t      *testing.T
	srv    *httptest.Server
	store  *store.Store
	client *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cat, err := catalog.ReadYAML(strings.NewReader(catalogYAML))
	if err != nil {
		t.Fatalf("ReadYAML: %v", err)
	}
	// Ten days in: the current course week is 2.
	course := calendar.New(time.Now().AddDate(0, 0, -10), time.Local)
	m := metrics.New(prometheus.NewRegistry())
	acts := activity.New(s, m)
	local, err := identity.NewLocal(s, "test-secret", nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	h, err := New(Deps{
		Accounts: account.New(local, s, acts, course, m),
		Surveys:  survey.New(cat, s, acts, course, m),
		Results:  results.New(cat, s, course),
		Timeline: timeline.New(s, course, timeline.DefaultFields),
		Activity: acts,
		Resetter: local,
		Store:    s,
		Metrics:  m,
	}, model.SiteConfig{})
	if err != nil {
		t.Fatalf("handler.New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Use(appI18n.Middleware("en"))
	r.Use(h.BasePathMiddleware)
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testApp{
		t:     t,
		srv:   srv,
		store: s,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}},
	}
}

// do sends a request with the CSRF pair and optional session cookie and
// returns the status and body.
func (a *testApp) do(method, path, session string, form url.Values) (int, string, *http.Response) {
	a.t.Helper()
	var body *strings.Reader
	if form != nil {
		form.Set("csrf_token", csrfValue)
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	if err != nil {
		a.t.Fatalf("NewRequest: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: csrfValue})
	if session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session})
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return resp.StatusCode, sb.String(), resp
}

func (a *testApp) signUpAndLogin(email, name, group string) string {
	a.t.Helper()
	code, body, _ := a.do(http.MethodPost, "/signup", "", url.Values{
		"email": {email}, "password": {"secret1"}, "name": {name}, "group": {group},
	})
	if code != http.StatusOK || !strings.Contains(body, "Your account is created successfully!") {
		a.t.Fatalf("signup: %d\n%s", code, body)
	}
	code, _, resp := a.do(http.MethodPost, "/login", "", url.Values{"email": {email}, "password": {"secret1"}})
	if code != http.StatusSeeOther {
		a.t.Fatalf("login status = %d", code)
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			return c.Value
		}
	}
	a.t.Fatal("no session cookie")
	return ""
}

func (a *testApp) actions(userID string) []string {
	a.t.Helper()
	acts, err := a.store.ListActivities(context.Background(), userID)
	if err != nil {
		a.t.Fatalf("ListActivities: %v", err)
	}
	var out []string
	for _, x := range acts {
		out = append(out, x.Action)
	}
	return out
}

func TestUnauthenticatedRedirects(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/", "/survey/pre", "/results/post"} {
		code, _, resp := app.do(http.MethodGet, path, "", nil)
		if code != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Errorf("GET %s: %d %q", path, code, resp.Header.Get("Location"))
		}
	}
}

func TestCSRFRequired(t *testing.T) {
	app := newTestApp(t)
	resp, err := http.PostForm(app.srv.URL+"/login", url.Values{"email": {"a@b.c"}, "password": {"x"}})
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestLoginMessages(t *testing.T) {
	app := newTestApp(t)
	app.signUpAndLogin("ann@example.com", "Ann", "2")

	tests := []struct {
		name  string
		email string
		pass  string
		want  string
	}{
		{"unknown email", "bob@example.com", "secret1", "Email wasn&#39;t found. Please sign up."},
		{"wrong password", "ann@example.com", "nope123", "Invalid password. Please enter the correct email/password."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body, _ := app.do(http.MethodPost, "/login", "", url.Values{"email": {tt.email}, "password": {tt.pass}})
			if code != http.StatusUnauthorized {
				t.Errorf("status = %d", code)
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}

	code, body, _ := app.do(http.MethodPost, "/signup", "", url.Values{
		"email": {"ann@example.com"}, "password": {"secret1"}, "name": {"Ann"}, "group": {"2"},
	})
	if code != http.StatusBadRequest || !strings.Contains(body, "Email already exists.") {
		t.Errorf("duplicate signup: %d", code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	app.signUpAndLogin("ann@example.com", "Ann", "2")

	_, body, _ := app.do(http.MethodPost, "/reset", "", url.Values{"email": {"ann@"}})
	if !strings.Contains(body, "Email isn&#39;t correct.") {
		t.Errorf("invalid email message missing")
	}
	_, body, _ = app.do(http.MethodPost, "/reset", "", url.Values{"email": {"ann@example.com"}})
	if !strings.Contains(body, "Email has been sent to: ann@example.com.") {
		t.Errorf("sent message missing")
	}

	code, _, _ := app.do(http.MethodGet, "/reset/not-a-token", "", nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown token status = %d", code)
	}
}

func TestSurveySubmitAndResults(t *testing.T) {
	app := newTestApp(t)
	session := app.signUpAndLogin("ann@example.com", "Ann", "3")
	other := app.signUpAndLogin("bob@example.com", "Bob", "3")

	code, body, _ := app.do(http.MethodGet, "/survey/pre", session, nil)
	if code != http.StatusOK {
		t.Fatalf("survey page: %d", code)
	}
	for _, want := range []string{"Welcome: Ann to Week 2", "Please submit a pre-survey for this week.", `name="q3"`, "Motivation"} {
		if !strings.Contains(body, want) {
			t.Errorf("survey page missing %q", want)
		}
	}

	code, body, _ = app.do(http.MethodPost, "/survey/pre", session, url.Values{
		"q1": {"High"}, "q3": {"Notes", "Peers"}, "q5": {"master recursion"}, "q6": {"daily practice"},
	})
	if code != http.StatusOK {
		t.Fatalf("submit: %d\n%s", code, body)
	}
	if !strings.Contains(body, "successfully submitted the pre-survey") || !strings.Contains(body, `data-autoclear="5000"`) {
		t.Error("success notice missing")
	}
	if !strings.Contains(body, "already submitted the pre-survey") {
		t.Error("overwrite notice missing after submit")
	}

	code, _, _ = app.do(http.MethodPost, "/survey/pre", other, url.Values{"q1": {"Extreme"}})
	if code != http.StatusBadRequest {
		t.Errorf("invalid answer status = %d", code)
	}
	app.do(http.MethodPost, "/survey/pre", other, url.Values{"q1": {"Low"}, "q3": {"Notes"}})

	code, body, _ = app.do(http.MethodGet, "/results/pre", session, nil)
	if code != http.StatusOK {
		t.Fatalf("results: %d", code)
	}
	if !strings.Contains(body, "Pre-survey results of Group: 3 | No. of responses: 2") {
		t.Errorf("results title missing:\n%s", body)
	}
	if !strings.Contains(body, "<li>master recursion</li>") || !strings.Contains(body, `<iframe class="chart"`) {
		t.Error("results sections missing")
	}
	if !strings.Contains(body, "<h3>Plans</h3><blockquote>Your plans?</blockquote>") {
		t.Error("uncharted question missing its heading and prompt")
	}

	_, body, _ = app.do(http.MethodGet, "/results/pre?week=1", session, nil)
	if !strings.Contains(body, "No. of responses: 0") || !strings.Contains(body, "No response in the selected period.") {
		t.Error("empty week not reported")
	}
	app.do(http.MethodGet, "/results/pre?week=1", session, nil)
	_, body, _ = app.do(http.MethodGet, "/results/pre?week=99", session, nil)
	if !strings.Contains(body, "No. of responses: 2") {
		t.Error("week beyond current not clamped")
	}

	_, body, _ = app.do(http.MethodGet, "/", session, nil)
	if !strings.Contains(body, "master recursion") || !strings.Contains(body, "No data") {
		t.Errorf("goals page:\n%s", body)
	}

	code, _, resp := app.do(http.MethodPost, "/logout", session, url.Values{})
	if code != http.StatusSeeOther || resp.Header.Get("Location") != "/login?logged_out=1" {
		t.Errorf("logout: %d %q", code, resp.Header.Get("Location"))
	}
	code, _, _ = app.do(http.MethodGet, "/", session, nil)
	if code != http.StatusSeeOther {
		t.Errorf("session still valid after logout: %d", code)
	}

	users, _ := app.store.ListUsers(context.Background())
	var annID string
	for _, u := range users {
		if u.Email == "ann@example.com" {
			annID = u.ID
		}
	}
	want := []string{
		"signup", "login", "see_submit_pre_survey_page", "submit_pre_survey",
		"see_pre_survey_page",
		"see_pre_survey_page", "select_pre_survey_week_1",
		"see_pre_survey_page",
		"see_pre_survey_page", "select_pre_survey_week_2",
		"see_homepage", "logout",
	}
	got := app.actions(annID)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("actions =\n%v\nwant\n%v", got, want)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	app := newTestApp(t)
	code, body, _ := app.do(http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK || body != "ok\n" {
		t.Errorf("healthz: %d %q", code, body)
	}
	app.do(http.MethodGet, "/login", "", nil)
	_, body, _ = app.do(http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(body, `http_requests_total{endpoint="/login",method="GET",status="200"} 1`) {
		t.Errorf("metrics missing login request:\n%s", body)
	}
}
