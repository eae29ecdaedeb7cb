package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cohortlab/weeklysurvey/internal/activity"
	"github.com/cohortlab/weeklysurvey/internal/chart"
	"github.com/cohortlab/weeklysurvey/internal/handler/views"
	appI18n "github.com/cohortlab/weeklysurvey/internal/i18n"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/survey"
)

func (h *Handler) handleGoals(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	h.Activity.Log(r.Context(), activity.SeeHome, sess.User.ID)

	rows, err := h.Timeline.Rows(r.Context(), sess.User.ID)
	if err != nil {
		slog.Error("failed to build timeline", "user", sess.User.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	render(w, r, http.StatusOK, views.GoalsPage(views.GoalsData{
		Header: h.header(sess, views.MenuGoals),
		Rows:   rows,
	}))
}

func submitMenu(t model.SurveyType) string {
	if t == model.SurveyPost {
		return views.MenuPostSubmit
	}
	return views.MenuPreSubmit
}

func resultsMenu(t model.SurveyType) string {
	if t == model.SurveyPost {
		return views.MenuPostResults
	}
	return views.MenuPreResults
}

// statusNotice reports whether this week's survey is already in.
func (h *Handler) statusNotice(r *http.Request, t model.SurveyType, userID string) (views.Notice, error) {
	done, err := h.Surveys.Submitted(r.Context(), t, userID)
	if err != nil {
		return views.Notice{}, err
	}
	if done {
		id := "AlreadySubmittedPre"
		if t == model.SurveyPost {
			id = "AlreadySubmittedPost"
		}
		return views.Notice{Kind: views.NoticeInfo, Text: appI18n.T(r.Context(), id)}, nil
	}
	id := "NotSubmittedPre"
	if t == model.SurveyPost {
		id = "NotSubmittedPost"
	}
	return views.Notice{Kind: views.NoticeWarning, Text: appI18n.T(r.Context(), id)}, nil
}

func (h *Handler) handleSurveyPage(w http.ResponseWriter, r *http.Request) {
	t, ok := surveyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess := model.SessionFromContext(r.Context())
	h.Activity.Log(r.Context(), activity.SeeSubmitPage(t), sess.User.ID)

	notice, err := h.statusNotice(r, t, sess.User.ID)
	if err != nil {
		slog.Error("failed to check submission", "survey", t, "user", sess.User.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	render(w, r, http.StatusOK, views.SurveyPage(views.SurveyData{
		Header:  h.header(sess, submitMenu(t)),
		Form:    h.Surveys.Form(t),
		Notices: []views.Notice{notice},
	}))
}

func (h *Handler) handleSubmitSurvey(w http.ResponseWriter, r *http.Request) {
	t, ok := surveyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess := model.SessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	_, err := h.Surveys.Submit(r.Context(), t, sess.User.ID, r.PostForm)
	if errors.Is(err, survey.ErrInvalidAnswer) {
		slog.Warn("rejected survey answer", "survey", t, "user", sess.User.ID, "error", err)
		render(w, r, http.StatusBadRequest, views.SurveyPage(views.SurveyData{
			Header:  h.header(sess, submitMenu(t)),
			Form:    h.Surveys.Form(t),
			Notices: []views.Notice{{Kind: views.NoticeError, Text: appI18n.T(r.Context(), "InvalidAnswer")}},
		}))
		return
	}
	if err != nil {
		slog.Error("failed to store submission", "survey", t, "user", sess.User.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	notice, err := h.statusNotice(r, t, sess.User.ID)
	if err != nil {
		slog.Error("failed to check submission", "survey", t, "user", sess.User.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	thanks := "SubmittedPre"
	if t == model.SurveyPost {
		thanks = "SubmittedPost"
	}
	render(w, r, http.StatusOK, views.SurveyPage(views.SurveyData{
		Header: h.header(sess, submitMenu(t)),
		Form:   h.Surveys.Form(t),
		Notices: []views.Notice{
			notice,
			{Kind: views.NoticeSuccess, Text: appI18n.T(r.Context(), thanks), AutoClear: true},
		},
	}))
}

// selectedWeek reads ?week=N, defaulting to the session's last selection and
// clamping to the weeks offered by the selector.
func selectedWeek(r *http.Request, sess *model.Session, t model.SurveyType, current int) int {
	week := sess.SelectedWeek(t)
	if v := r.URL.Query().Get("week"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			week = n
		}
	}
	return max(1, min(week, current))
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	t, ok := surveyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess := model.SessionFromContext(r.Context())
	h.Activity.Log(r.Context(), activity.SeeResultsPage(t), sess.User.ID)

	current := h.Results.CurrentWeek()
	week := selectedWeek(r, sess, t, current)
	if _, err := h.Accounts.SelectWeek(r.Context(), sess, t, week); err != nil {
		slog.Warn("failed to save selected week", "survey", t, "week", week, "error", err)
	}

	report, err := h.Results.Report(r.Context(), t, sess.User.ID, week)
	if err != nil {
		slog.Error("failed to build results", "survey", t, "week", week, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sections := make([]views.ResultSection, 0, len(report.Sections))
	for _, sec := range report.Sections {
		doc, err := chart.Render(sec)
		if err != nil {
			slog.Warn("chart rendering failed", "question", sec.Question.ID(), "error", err)
			doc = nil
		}
		sections = append(sections, views.ResultSection{Section: sec, Chart: doc})
	}

	render(w, r, http.StatusOK, views.ResultsPage(views.ResultsData{
		Header:      h.header(sess, resultsMenu(t)),
		Report:      report,
		CurrentWeek: current,
		Sections:    sections,
	}))
}
