// Package activity appends user actions to the activity log.
package activity

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
)

// Action tags written by the app.
const (
	Login      = "login"
	Signup     = "signup"
	Logout     = "logout"
	SeeHome    = "see_homepage"
	seePrefix  = "see_"
	weekSuffix = "_week_"
)

// SeeSubmitPage is logged when a survey submission page is shown.
func SeeSubmitPage(t model.SurveyType) string {
	return "see_submit_" + string(t) + "_survey_page"
}

// SeeResultsPage is logged when a results page is shown.
func SeeResultsPage(t model.SurveyType) string {
	return seePrefix + string(t) + "_survey_page"
}

// Submit is logged when a survey is submitted.
func Submit(t model.SurveyType) string {
	return "submit_" + string(t) + "_survey"
}

// SelectWeek is logged when the results week selector changes.
func SelectWeek(t model.SurveyType, week int) string {
	return "select_" + string(t) + "_survey" + weekSuffix + strconv.Itoa(week)
}

// Pusher appends activity records.
type Pusher interface {
	PushActivity(ctx context.Context, a model.Activity) (string, error)
}

// Logger appends activity records. Failures are logged and never returned.
type Logger struct {
	store   Pusher
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an activity logger. m may be nil.
func New(s Pusher, m *metrics.Metrics) *Logger {
	return &Logger{store: s, metrics: m, now: time.Now}
}

// Log appends {timestamp, action, user id}.
func (l *Logger) Log(ctx context.Context, action, userID string) {
	_, err := l.store.PushActivity(ctx, model.Activity{
		Timestamp: l.now().UnixMilli(),
		Action:    action,
		UserID:    userID,
	})
	if err != nil {
		slog.Warn("failed to log activity", "action", action, "user", userID, "error", err)
		return
	}
	if l.metrics != nil {
		l.metrics.Activities.WithLabelValues(family(action)).Inc()
	}
	slog.Debug("activity", "action", action, "user", userID)
}

// family drops the week number from select actions to bound label cardinality.
func family(action string) string {
	if i := strings.LastIndex(action, weekSuffix); i >= 0 {
		return action[:i+len(weekSuffix)-1]
	}
	return action
}
