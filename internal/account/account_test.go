package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cohortlab/weeklysurvey/internal/activity"
	"github.com/cohortlab/weeklysurvey/internal/calendar"
	"github.com/cohortlab/weeklysurvey/internal/identity"
	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/store"
)

// stubProvider returns the configured error, or a fixed handle.
type stubProvider struct {
	signInErr error
	signUpErr error
	resetErr  error
}

func (p *stubProvider) SignIn(_ context.Context, email, password string) (identity.Handle, error) {
	if p.signInErr != nil {
		return identity.Handle{}, p.signInErr
	}
	return identity.Handle{UserID: "uid-ann", Token: "tok"}, nil
}

func (p *stubProvider) SignUp(_ context.Context, email, password string) (identity.Handle, error) {
	if p.signUpErr != nil {
		return identity.Handle{}, p.signUpErr
	}
	return identity.Handle{UserID: "uid-ann", Token: "tok"}, nil
}

func (p *stubProvider) SendPasswordReset(context.Context, string) error {
	return p.resetErr
}

type fixture struct {
	svc     *Service
	store   *store.Store
	metrics *metrics.Metrics
	prov    *stubProvider
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	m := metrics.New(prometheus.NewRegistry())
	course := calendar.New(time.Date(2022, 10, 3, 0, 0, 0, 0, time.UTC), time.UTC)
	p := &stubProvider{}
	svc := New(p, s, activity.New(s, m), course, m)
	// Wednesday of week 3.
	svc.now = func() time.Time { return time.Date(2022, 10, 19, 12, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, store: s, metrics: m, prov: p}
}

func actions(t *testing.T, s *store.Store) []string {
	t.Helper()
	acts, err := s.ListActivities(context.Background(), "")
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	var out []string
	for _, a := range acts {
		out = append(out, a.Action)
	}
	return out
}

func TestSignUpSignInResolveSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.SignUp(ctx, SignUpForm{Email: " ann@example.com ", Password: "secret1", Name: "Ann", Group: "4"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	u, _ := f.store.GetUser(ctx, "uid-ann")
	if u == nil || u.Group != "4" || u.Email != "ann@example.com" || u.Name != "Ann" {
		t.Fatalf("unexpected user record: %+v", u)
	}

	token, err := f.svc.SignIn(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	sess, err := f.svc.Resolve(ctx, token)
	if err != nil || sess == nil {
		t.Fatalf("Resolve: %+v, %v", sess, err)
	}
	if sess.User.ID != "uid-ann" || sess.PreWeek != 3 || sess.PostWeek != 3 {
		t.Errorf("unexpected session: %+v", sess)
	}

	if err := f.svc.SignOut(ctx, sess); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if sess, _ := f.svc.Resolve(ctx, token); sess != nil {
		t.Error("session still resolves after sign-out")
	}

	got := actions(t, f.store)
	want := []string{"signup", "login", "logout"}
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRejectionMessages(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(p *stubProvider)
		call    func(s *Service) error
		wantMsg string
	}{
		{
			name:    "sign-in unknown email",
			setup:   func(p *stubProvider) { p.signInErr = &identity.Error{Code: identity.CodeEmailNotFound} },
			call:    func(s *Service) error { _, err := s.SignIn(context.Background(), "x@example.com", "p"); return err },
			wantMsg: MsgEmailNotFound,
		},
		{
			name:    "sign-in wrong password",
			setup:   func(p *stubProvider) { p.signInErr = &identity.Error{Code: identity.CodeInvalidPassword} },
			call:    func(s *Service) error { _, err := s.SignIn(context.Background(), "x@example.com", "p"); return err },
			wantMsg: MsgInvalidPassword,
		},
		{
			name:    "sign-in merged credentials code",
			setup:   func(p *stubProvider) { p.signInErr = &identity.Error{Code: identity.CodeInvalidCredentials} },
			call:    func(s *Service) error { _, err := s.SignIn(context.Background(), "x@example.com", "p"); return err },
			wantMsg: MsgInvalidPassword,
		},
		{
			name:    "sign-in throttled is silent",
			setup:   func(p *stubProvider) { p.signInErr = &identity.Error{Code: identity.CodeTooManyAttempts} },
			call:    func(s *Service) error { _, err := s.SignIn(context.Background(), "x@example.com", "p"); return err },
			wantMsg: "",
		},
		{
			name:    "sign-up existing email",
			setup:   func(p *stubProvider) { p.signUpErr = &identity.Error{Code: identity.CodeEmailExists} },
			call:    func(s *Service) error { return s.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Group: "1"}) },
			wantMsg: MsgEmailExists,
		},
		{
			name:    "sign-up weak password is silent",
			setup:   func(p *stubProvider) { p.signUpErr = &identity.Error{Code: identity.CodeWeakPassword} },
			call:    func(s *Service) error { return s.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Group: "1"}) },
			wantMsg: "",
		},
		{
			name:    "sign-up group out of range",
			setup:   func(p *stubProvider) {},
			call:    func(s *Service) error { return s.SignUp(context.Background(), SignUpForm{Email: "a@b.c", Group: "11"}) },
			wantMsg: MsgInvalidGroup,
		},
		{
			name:    "reset malformed email",
			setup:   func(p *stubProvider) { p.resetErr = &identity.Error{Code: identity.CodeInvalidEmail} },
			call:    func(s *Service) error { return s.RequestPasswordReset(context.Background(), "nope") },
			wantMsg: MsgInvalidEmail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f.prov)
			err := tt.call(f.svc)
			if err == nil {
				t.Fatal("expected an error")
			}
			var r *Rejection
			if !errors.As(err, &r) {
				t.Fatalf("error %v is not a rejection", err)
			}
			if got := MessageOf(err); got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}
			if len(actions(t, f.store)) != 0 {
				t.Error("rejected call logged an activity")
			}
		})
	}
}

func TestRejectionCounter(t *testing.T) {
	f := newFixture(t)
	f.prov.signInErr = &identity.Error{Code: identity.CodeEmailNotFound}
	_, _ = f.svc.SignIn(context.Background(), "x@example.com", "p")
	if got := testutil.ToFloat64(f.metrics.AuthRejections.WithLabelValues("signin", "EMAIL_NOT_FOUND")); got != 1 {
		t.Errorf("rejection counter = %v, want 1", got)
	}
}

func TestTransportErrorIsNotRejection(t *testing.T) {
	f := newFixture(t)
	f.prov.signInErr = errors.New("connection refused")
	_, err := f.svc.SignIn(context.Background(), "x@example.com", "p")
	if err == nil || MessageOf(err) != "" {
		t.Fatalf("unexpected result: %v", err)
	}
	var r *Rejection
	if errors.As(err, &r) {
		t.Error("transport failure reported as rejection")
	}
}

func TestSelectWeekLogsOncePerChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.SignUp(ctx, SignUpForm{Email: "ann@example.com", Password: "secret1", Name: "Ann", Group: "1"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	token, _ := f.svc.SignIn(ctx, "ann@example.com", "secret1")
	sess, _ := f.svc.Resolve(ctx, token)

	steps := []struct {
		survey model.SurveyType
		week   int
		change bool
	}{
		{model.SurveyPre, 3, false},
		{model.SurveyPre, 1, true},
		{model.SurveyPre, 1, false},
		{model.SurveyPost, 1, true},
		{model.SurveyPre, 2, true},
	}
	for i, st := range steps {
		changed, err := f.svc.SelectWeek(ctx, sess, st.survey, st.week)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if changed != st.change {
			t.Errorf("step %d: changed = %v, want %v", i, changed, st.change)
		}
	}

	reloaded, _ := f.svc.Resolve(ctx, token)
	if reloaded.PreWeek != 2 || reloaded.PostWeek != 1 {
		t.Errorf("persisted weeks = %d/%d, want 2/1", reloaded.PreWeek, reloaded.PostWeek)
	}

	var selects []string
	for _, a := range actions(t, f.store) {
		if a != "signup" && a != "login" {
			selects = append(selects, a)
		}
	}
	want := []string{"select_pre_survey_week_1", "select_post_survey_week_1", "select_pre_survey_week_2"}
	if len(selects) != len(want) {
		t.Fatalf("select actions = %v, want %v", selects, want)
	}
	for i := range want {
		if selects[i] != want[i] {
			t.Errorf("select[%d] = %q, want %q", i, selects[i], want[i])
		}
	}
}

func TestResolveChecksProviderToken(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	local, err := identity.NewLocal(s, "test-secret", nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	svc := New(local, s, activity.New(s, nil), calendar.New(time.Now(), time.UTC), nil)
	for _, f := range []SignUpForm{
		{Email: "ann@example.com", Password: "secret1", Name: "Ann", Group: "2"},
		{Email: "bob@example.com", Password: "secret2", Name: "Bob", Group: "2"},
	} {
		if err := svc.SignUp(ctx, f); err != nil {
			t.Fatalf("SignUp %s: %v", f.Email, err)
		}
	}

	token, err := svc.SignIn(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	sess, err := svc.Resolve(ctx, token)
	if err != nil || sess == nil {
		t.Fatalf("Resolve: %+v, %v", sess, err)
	}
	annID := sess.User.ID

	other, _ := identity.NewLocal(s, "another-secret", nil)
	foreign, err := other.SignIn(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn with other secret: %v", err)
	}
	bob, err := local.SignIn(ctx, "bob@example.com", "secret2")
	if err != nil {
		t.Fatalf("SignIn bob: %v", err)
	}

	tests := []struct {
		name          string
		providerToken string
	}{
		{"signed with another secret", foreign.Token},
		{"issued to another user", bob.Token},
		{"not a token", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := s.CreateAuthSession(ctx, annID, tt.providerToken, 1)
			if err != nil {
				t.Fatalf("CreateAuthSession: %v", err)
			}
			sess, err := svc.Resolve(ctx, tok)
			if err != nil || sess != nil {
				t.Fatalf("Resolve = %+v, %v; want nil, nil", sess, err)
			}
			if as, _ := s.GetAuthSession(ctx, tok); as != nil {
				t.Error("rejected auth session was not deleted")
			}
		})
	}
}
