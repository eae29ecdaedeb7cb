// Package account wraps the identity provider with the app's user records,
// auth sessions and activity log.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cohortlab/weeklysurvey/internal/activity"
	"github.com/cohortlab/weeklysurvey/internal/calendar"
	"github.com/cohortlab/weeklysurvey/internal/identity"
	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
)

// Message IDs shown for provider rejections.
const (
	MsgEmailNotFound   = "LoginEmailNotFound"
	MsgInvalidPassword = "LoginInvalidPassword"
	MsgEmailExists     = "SignupEmailExists"
	MsgInvalidEmail    = "ResetInvalidEmail"
	MsgInvalidGroup    = "SignupInvalidGroup"
)

// Rejection is a refused sign-in, sign-up or reset. MessageID is empty when
// the provider code has no user-facing message.
type Rejection struct {
	Op        string
	Code      identity.Code
	MessageID string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Op, r.Code)
}

// MessageOf returns the message ID for a rejection, or "".
func MessageOf(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.MessageID
	}
	return ""
}

var messages = map[string]map[identity.Code]string{
	"signin": {
		identity.CodeEmailNotFound:      MsgEmailNotFound,
		identity.CodeInvalidPassword:    MsgInvalidPassword,
		identity.CodeInvalidCredentials: MsgInvalidPassword,
	},
	"signup": {
		identity.CodeEmailExists: MsgEmailExists,
	},
	"reset": {
		identity.CodeInvalidEmail: MsgInvalidEmail,
	},
}

// Store is the persistence the adapter needs.
type Store interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateAuthSession(ctx context.Context, userID, providerToken string, week int) (string, error)
	GetAuthSession(ctx context.Context, token string) (*model.AuthSession, error)
	SaveSelectedWeeks(ctx context.Context, token string, preWeek, postWeek int) error
	DeleteAuthSession(ctx context.Context, token string) error
}

// Service signs users in and out and resolves their sessions.
type Service struct {
	provider identity.Provider
	store    Store
	activity *activity.Logger
	course   calendar.Course
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates an account service. m may be nil.
func New(p identity.Provider, s Store, a *activity.Logger, course calendar.Course, m *metrics.Metrics) *Service {
	return &Service{provider: p, store: s, activity: a, course: course, metrics: m, now: time.Now}
}

// CurrentWeek returns the course week for the current time.
func (s *Service) CurrentWeek() int {
	return s.course.WeekNo(s.now())
}

func (s *Service) reject(op string, err error) error {
	code := identity.CodeOf(err)
	if code == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.metrics != nil {
		s.metrics.AuthRejections.WithLabelValues(op, string(code)).Inc()
	}
	msg := messages[op][code]
	if msg == "" {
		slog.Info("identity provider rejection", "op", op, "code", code)
	}
	return &Rejection{Op: op, Code: code, MessageID: msg}
}

// SignIn authenticates and opens an auth session. Both selected results
// weeks start at the current week.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	h, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return "", s.reject("signin", err)
	}
	token, err := s.store.CreateAuthSession(ctx, h.UserID, h.Token, s.CurrentWeek())
	if err != nil {
		return "", fmt.Errorf("create auth session: %w", err)
	}
	s.activity.Log(ctx, activity.Login, h.UserID)
	return token, nil
}

// SignUpForm is the data collected by the sign-up page.
type SignUpForm struct {
	Email    string
	Password string
	Name     string
	Group    string
}

// SignUp registers a provider account and writes the user record.
func (s *Service) SignUp(ctx context.Context, f SignUpForm) error {
	if !model.ValidGroup(f.Group) {
		return &Rejection{Op: "signup", MessageID: MsgInvalidGroup}
	}
	email := strings.TrimSpace(f.Email)
	h, err := s.provider.SignUp(ctx, email, f.Password)
	if err != nil {
		return s.reject("signup", err)
	}
	err = s.store.CreateUser(ctx, model.User{
		ID:    h.UserID,
		Name:  strings.TrimSpace(f.Name),
		Email: email,
		Group: f.Group,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	s.activity.Log(ctx, activity.Signup, h.UserID)
	return nil
}

// RequestPasswordReset asks the provider to send a reset link.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if err := s.provider.SendPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		return s.reject("reset", err)
	}
	return nil
}

// SignOut closes the auth session.
func (s *Service) SignOut(ctx context.Context, sess *model.Session) error {
	if err := s.store.DeleteAuthSession(ctx, sess.Token); err != nil {
		return fmt.Errorf("delete auth session: %w", err)
	}
	if sess.User != nil {
		s.activity.Log(ctx, activity.Logout, sess.User.ID)
	}
	return nil
}

// Resolve loads the session for an auth token. It returns nil, nil when the
// token is unknown or expired, when a verifying provider rejects the stored
// provider token, or when the user record is missing.
func (s *Service) Resolve(ctx context.Context, token string) (*model.Session, error) {
	as, err := s.store.GetAuthSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get auth session: %w", err)
	}
	if as == nil {
		return nil, nil
	}
	if v, ok := s.provider.(identity.Verifier); ok {
		uid, err := v.VerifyToken(as.ProviderToken)
		if err != nil || uid != as.UserID {
			slog.Warn("auth session with invalid provider token", "user", as.UserID, "error", err)
			if err := s.store.DeleteAuthSession(ctx, token); err != nil {
				return nil, fmt.Errorf("delete auth session: %w", err)
			}
			return nil, nil
		}
	}
	u, err := s.store.GetUser(ctx, as.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		slog.Warn("auth session without user record", "user", as.UserID)
		return nil, nil
	}
	return &model.Session{
		Token:    as.ID,
		User:     u,
		PreWeek:  as.PreWeek,
		PostWeek: as.PostWeek,
	}, nil
}

// SelectWeek records the results week chosen for a survey type. A change is
// logged once; selecting the same week again is a no-op.
func (s *Service) SelectWeek(ctx context.Context, sess *model.Session, t model.SurveyType, week int) (bool, error) {
	if week == sess.SelectedWeek(t) {
		return false, nil
	}
	sess.SetSelectedWeek(t, week)
	if err := s.store.SaveSelectedWeeks(ctx, sess.Token, sess.PreWeek, sess.PostWeek); err != nil {
		return true, fmt.Errorf("save selected weeks: %w", err)
	}
	s.activity.Log(ctx, activity.SelectWeek(t, week), sess.User.ID)
	return true, nil
}
