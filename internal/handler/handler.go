package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/cohortlab/weeklysurvey/internal/account"
	"github.com/cohortlab/weeklysurvey/internal/activity"
	"github.com/cohortlab/weeklysurvey/internal/handler/views"
	"github.com/cohortlab/weeklysurvey/internal/metrics"
	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/results"
	"github.com/cohortlab/weeklysurvey/internal/survey"
	"github.com/cohortlab/weeklysurvey/internal/timeline"
)

// Resetter completes password resets served by this app.
type Resetter interface {
	ValidResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, password string) error
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the handlers call.
type Deps struct {
	Accounts *account.Service
	Surveys  *survey.Service
	Results  *results.Service
	Timeline *timeline.Service
	Activity *activity.Logger
	// Resetter is nil when resets are handled by the identity provider.
	Resetter Resetter
	Store    Pinger
	Metrics  *metrics.Metrics
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	Deps
	config model.SiteConfig
}

// New creates a new Handler.
func New(d Deps, cfg model.SiteConfig) (*Handler, error) {
	switch {
	case d.Accounts == nil, d.Surveys == nil, d.Results == nil, d.Timeline == nil, d.Activity == nil:
		return nil, errors.New("handler: missing service")
	}
	cfg.LocalReset = d.Resetter != nil
	return &Handler{Deps: d, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealthz)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)

		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Get("/signup", h.handleSignUpPage)
		r.Post("/signup", h.handleSignUp)
		r.Post("/reset", h.handleResetRequest)
		if h.config.LocalReset {
			r.Get("/reset/{token}", h.handleResetPage)
			r.Post("/reset/{token}", h.handleReset)
		}

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/", h.handleGoals)
			r.Get("/survey/{survey}", h.handleSurveyPage)
			r.Post("/survey/{survey}", h.handleSubmitSurvey)
			r.Get("/results/{survey}", h.handleResults)
			r.Post("/logout", h.handleLogout)
		})
	})
}

// BasePathMiddleware makes the base path available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes an app path with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) header(sess *model.Session, active string) views.Header {
	return views.Header{Session: sess, Week: h.Accounts.CurrentWeek(), Active: active}
}

func surveyParam(r *http.Request) (model.SurveyType, bool) {
	t, err := model.ParseSurveyType(chi.URLParam(r, "survey"))
	return t, err == nil
}
