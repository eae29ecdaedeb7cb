package model

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// SurveyType identifies one of the two weekly surveys.
type SurveyType string

const (
	// SurveyPre is the survey taken at the start of a week.
	SurveyPre SurveyType = "pre"
	// SurveyPost is the survey taken at the end of a week.
	SurveyPost SurveyType = "post"
)

// SurveyTypes lists the survey types in menu order.
var SurveyTypes = []SurveyType{SurveyPre, SurveyPost}

// ParseSurveyType converts a URL or flag value into a SurveyType.
func ParseSurveyType(s string) (SurveyType, error) {
	switch SurveyType(s) {
	case SurveyPre, SurveyPost:
		return SurveyType(s), nil
	}
	return "", fmt.Errorf("unknown survey type %q", s)
}

// User represents a registered student.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Group     string    `json:"group"`
	CreatedAt time.Time `json:"-"`
}

// Groups is the number of cohort groups a student can join at signup.
const Groups = 10

// ValidGroup reports whether g names one of the cohort groups.
func ValidGroup(g string) bool {
	n, err := strconv.Atoi(g)
	return err == nil && n >= 1 && n <= Groups
}

// Submission is one user's answered survey for one week.
type Submission struct {
	Type      SurveyType `json:"-"`
	Key       string     `json:"-"`
	UserID    string     `json:"id"`
	Week      int        `json:"-"`
	Timestamp int64      `json:"timestamp"` // epoch milliseconds
	Response  Response   `json:"response"`
}

// SubmissionKey builds the per-type document key for a user's week.
func SubmissionKey(userID string, week int) string {
	return userID + "_" + strconv.Itoa(week)
}

// Time returns the submission timestamp as a time.Time.
func (s Submission) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Activity is an append-only record of a user action.
type Activity struct {
	ID        string `json:"-"`
	Timestamp int64  `json:"timestamp"`
	Action    string `json:"activity"`
	UserID    string `json:"id"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID            string
	UserID        string
	ProviderToken string
	PreWeek       int
	PostWeek      int
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Session is the per-request session context handed to page handlers.
type Session struct {
	Token    string
	User     *User
	PreWeek  int
	PostWeek int
}

// SelectedWeek returns the last results week viewed for the survey type.
func (s *Session) SelectedWeek(t SurveyType) int {
	if t == SurveyPost {
		return s.PostWeek
	}
	return s.PreWeek
}

// SetSelectedWeek records the results week viewed for the survey type.
func (s *Session) SetSelectedWeek(t SurveyType, week int) {
	if t == SurveyPost {
		s.PostWeek = week
		return
	}
	s.PreWeek = week
}

type sessionCtxKey struct{}

// ContextWithSession stores the session context in the request context.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext retrieves the session context, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*Session)
	return s
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// SiteConfig holds runtime web parameters set via CLI flags.
type SiteConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/dute")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	LocalReset    bool   // Password reset links are served by this app
}
