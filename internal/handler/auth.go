package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cohortlab/weeklysurvey/internal/account"
	"github.com/cohortlab/weeklysurvey/internal/handler/views"
	appI18n "github.com/cohortlab/weeklysurvey/internal/i18n"
	"github.com/cohortlab/weeklysurvey/internal/identity"
	"github.com/cohortlab/weeklysurvey/internal/model"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// csrfMiddleware implements double-submit cookies: safe requests get a fresh
// token, form posts must echo the cookie's token.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				slog.Warn("CSRF cookie missing")
				http.Error(w, "csrf token missing", http.StatusForbidden)
				return
			}
			formToken := r.FormValue("csrf_token")
			if formToken == "" {
				slog.Warn("CSRF form token missing")
				http.Error(w, "csrf token missing", http.StatusForbidden)
				return
			}
			if len(formToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
				slog.Warn("CSRF token mismatch")
				http.Error(w, "invalid csrf token", http.StatusForbidden)
				return
			}
		}

		token, err := generateCSRFToken()
		if err != nil {
			slog.Error("failed to generate CSRF token", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.setCSRFCookie(w, token)
		ctx := model.ContextWithCSRFToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth is middleware that resolves the session cookie into the
// request's session context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			h.redirectToLogin(w, r)
			return
		}

		sess, err := h.Accounts.Resolve(r.Context(), cookie.Value)
		if err != nil {
			slog.Error("failed to resolve session", "error", err)
			h.redirectToLogin(w, r)
			return
		}
		if sess == nil {
			h.redirectToLogin(w, r)
			return
		}

		ctx := model.ContextWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

// rejectionNotices turns a rejection into at most one error notice. Codes
// without a message show nothing.
func rejectionNotices(r *http.Request, err error) []views.Notice {
	if id := account.MessageOf(err); id != "" {
		return []views.Notice{{Kind: views.NoticeError, Text: appI18n.T(r.Context(), id)}}
	}
	return nil
}

func isRejection(err error) bool {
	var rej *account.Rejection
	return errors.As(err, &rej)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	var notices []views.Notice
	if r.URL.Query().Get("logged_out") != "" {
		notices = append(notices, views.Notice{Kind: views.NoticeSuccess, Text: appI18n.T(r.Context(), "LoggedOut")})
	}
	if r.URL.Query().Get("reset") != "" {
		notices = append(notices, views.Notice{Kind: views.NoticeSuccess, Text: appI18n.T(r.Context(), "ResetDone")})
	}
	render(w, r, http.StatusOK, views.LoginPage(views.LoginData{Notices: notices}))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	token, err := h.Accounts.SignIn(r.Context(), email, password)
	if err != nil {
		if !isRejection(err) {
			slog.Error("sign-in failed", "error", err)
		}
		render(w, r, http.StatusUnauthorized, views.LoginPage(views.LoginData{
			Email:   email,
			Notices: rejectionNotices(r, err),
		}))
		return
	}

	h.setSessionCookie(w, token, 0)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.SignUpPage(views.SignUpData{Group: "1"}))
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	form := account.SignUpForm{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Name:     r.FormValue("name"),
		Group:    r.FormValue("group"),
	}
	if err := h.Accounts.SignUp(r.Context(), form); err != nil {
		if !isRejection(err) {
			slog.Error("sign-up failed", "error", err)
		}
		render(w, r, http.StatusBadRequest, views.SignUpPage(views.SignUpData{
			Email:   form.Email,
			Name:    form.Name,
			Group:   form.Group,
			Notices: rejectionNotices(r, err),
		}))
		return
	}

	render(w, r, http.StatusOK, views.SignUpPage(views.SignUpData{
		Group: "1",
		Notices: []views.Notice{
			{Kind: views.NoticeSuccess, Text: appI18n.T(r.Context(), "SignupSuccess")},
			{Kind: views.NoticeInfo, Text: appI18n.T(r.Context(), "SignupLoginHint")},
		},
	}))
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	var notices []views.Notice
	err := h.Accounts.RequestPasswordReset(r.Context(), email)
	switch {
	case err == nil:
		notices = []views.Notice{{
			Kind: views.NoticeInfo,
			Text: appI18n.Td(r.Context(), "ResetSent", map[string]any{"Email": email}),
		}}
	case isRejection(err):
		notices = rejectionNotices(r, err)
	default:
		slog.Error("password reset request failed", "error", err)
	}
	render(w, r, http.StatusOK, views.LoginPage(views.LoginData{
		Email:     email,
		ShowReset: true,
		Notices:   notices,
	}))
}

func (h *Handler) handleResetPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	ok, err := h.Resetter.ValidResetToken(r.Context(), token)
	if err != nil {
		slog.Error("failed to check reset token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	d := views.ResetData{Token: token, Valid: ok}
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		d.Notices = []views.Notice{{Kind: views.NoticeError, Text: appI18n.T(r.Context(), "ResetLinkInvalid")}}
	}
	render(w, r, status, views.ResetPage(d))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	err := h.Resetter.ResetPassword(r.Context(), token, r.FormValue("password"))
	switch identity.CodeOf(err) {
	case "":
		if err != nil {
			slog.Error("password reset failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, h.path("/login?reset=1"), http.StatusSeeOther)
	case identity.CodeWeakPassword:
		render(w, r, http.StatusBadRequest, views.ResetPage(views.ResetData{
			Token:   token,
			Valid:   true,
			Notices: []views.Notice{{Kind: views.NoticeError, Text: appI18n.T(r.Context(), "ResetWeakPassword")}},
		}))
	default:
		render(w, r, http.StatusNotFound, views.ResetPage(views.ResetData{
			Token:   token,
			Notices: []views.Notice{{Kind: views.NoticeError, Text: appI18n.T(r.Context(), "ResetLinkInvalid")}},
		}))
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	if err := h.Accounts.SignOut(r.Context(), sess); err != nil {
		slog.Error("sign-out failed", "error", err)
	}
	h.setSessionCookie(w, "", -1)
	http.Redirect(w, r, h.path("/login?logged_out=1"), http.StatusSeeOther)
}
