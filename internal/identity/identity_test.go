package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cohortlab/weeklysurvey/internal/store"
)

func newLocal(t *testing.T) (*Local, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	p, err := NewLocal(s, "test-secret", nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return p, s
}

func TestLocalSignUpAndSignIn(t *testing.T) {
	p, _ := newLocal(t)
	ctx := context.Background()

	h, err := p.SignUp(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if h.UserID == "" || h.Token == "" {
		t.Fatalf("empty handle: %+v", h)
	}
	uid, err := p.VerifyToken(h.Token)
	if err != nil || uid != h.UserID {
		t.Errorf("VerifyToken = %q, %v; want %q", uid, err, h.UserID)
	}

	got, err := p.SignIn(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got.UserID != h.UserID {
		t.Errorf("SignIn user = %q, want %q", got.UserID, h.UserID)
	}
}

func TestLocalRejections(t *testing.T) {
	p, _ := newLocal(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "ann@example.com", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want Code
	}{
		{"duplicate email", func() error { _, err := p.SignUp(ctx, "ann@example.com", "other12"); return err }, CodeEmailExists},
		{"bad email on signup", func() error { _, err := p.SignUp(ctx, "not-an-email", "secret1"); return err }, CodeInvalidEmail},
		{"weak password", func() error { _, err := p.SignUp(ctx, "bob@example.com", "123"); return err }, CodeWeakPassword},
		{"unknown email", func() error { _, err := p.SignIn(ctx, "bob@example.com", "secret1"); return err }, CodeEmailNotFound},
		{"wrong password", func() error { _, err := p.SignIn(ctx, "ann@example.com", "wrong12"); return err }, CodeInvalidPassword},
		{"reset bad email", func() error { return p.SendPasswordReset(ctx, "ann@") }, CodeInvalidEmail},
		{"reset unknown email", func() error { return p.SendPasswordReset(ctx, "bob@example.com") }, CodeEmailNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.call()); got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalPasswordReset(t *testing.T) {
	p, _ := newLocal(t)
	ctx := context.Background()
	h, err := p.SignUp(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	var link string
	p.resetURL = func(token string) string {
		link = token
		return "/reset/" + token
	}
	if err := p.SendPasswordReset(ctx, "ann@example.com"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	if link == "" {
		t.Fatal("no reset token issued")
	}
	if ok, _ := p.ValidResetToken(ctx, link); !ok {
		t.Error("expected token to be valid")
	}
	if err := p.ResetPassword(ctx, link, "newpass1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if ok, _ := p.ValidResetToken(ctx, link); ok {
		t.Error("token should be consumed")
	}
	if CodeOf(p.ResetPassword(ctx, link, "again12")) != CodeInvalidOOBCode {
		t.Error("expected INVALID_OOB_CODE for a used token")
	}

	if _, err := p.SignIn(ctx, "ann@example.com", "secret1"); CodeOf(err) != CodeInvalidPassword {
		t.Errorf("old password still accepted: %v", err)
	}
	got, err := p.SignIn(ctx, "ann@example.com", "newpass1")
	if err != nil || got.UserID != h.UserID {
		t.Errorf("SignIn with new password: %+v, %v", got, err)
	}
}

func TestVerifyTokenRejectsForeignSecret(t *testing.T) {
	p, s := newLocal(t)
	h, err := p.SignUp(context.Background(), "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	other, _ := NewLocal(s, "another-secret", nil)
	if _, err := other.VerifyToken(h.Token); err == nil {
		t.Error("expected verification failure with a different secret")
	}
}

func TestNewLocalRequiresSecret(t *testing.T) {
	if _, err := NewLocal(nil, "", nil); err == nil {
		t.Error("expected error for empty secret")
	}
}

func newFirebaseServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "api-key" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid."}}`))
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fail := func(msg string) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 400, "message": msg}})
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/accounts:signInWithPassword"):
			switch body["email"] {
			case "ann@example.com":
				if body["password"] != "secret1" {
					fail("INVALID_PASSWORD")
					return
				}
				_, _ = w.Write([]byte(`{"localId":"uid-ann","idToken":"id-token"}`))
			default:
				fail("EMAIL_NOT_FOUND")
			}
		case strings.HasSuffix(r.URL.Path, "/accounts:signUp"):
			if body["email"] == "ann@example.com" {
				fail("EMAIL_EXISTS")
				return
			}
			if body["password"] == "123" {
				fail("WEAK_PASSWORD : Password should be at least 6 characters")
				return
			}
			_, _ = w.Write([]byte(`{"localId":"uid-new","idToken":"id-token-new"}`))
		case strings.HasSuffix(r.URL.Path, "/accounts:sendOobCode"):
			if body["requestType"] != "PASSWORD_RESET" {
				fail("INVALID_REQ_TYPE")
				return
			}
			if !strings.Contains(body["email"].(string), "@") {
				fail("INVALID_EMAIL")
				return
			}
			_, _ = w.Write([]byte(`{"email":"x"}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestFirebaseProvider(t *testing.T) {
	srv := newFirebaseServer(t)
	defer srv.Close()
	p, err := NewFirebase("api-key", srv.URL)
	if err != nil {
		t.Fatalf("NewFirebase: %v", err)
	}
	ctx := context.Background()

	h, err := p.SignIn(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if h.UserID != "uid-ann" || h.Token != "id-token" {
		t.Errorf("unexpected handle: %+v", h)
	}

	h, err = p.SignUp(ctx, "bob@example.com", "secret1")
	if err != nil || h.UserID != "uid-new" {
		t.Errorf("SignUp: %+v, %v", h, err)
	}

	if err := p.SendPasswordReset(ctx, "ann@example.com"); err != nil {
		t.Errorf("SendPasswordReset: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want Code
	}{
		{"wrong password", func() error { _, err := p.SignIn(ctx, "ann@example.com", "nope"); return err }, CodeInvalidPassword},
		{"unknown email", func() error { _, err := p.SignIn(ctx, "zed@example.com", "x"); return err }, CodeEmailNotFound},
		{"email exists", func() error { _, err := p.SignUp(ctx, "ann@example.com", "secret1"); return err }, CodeEmailExists},
		{"weak password with detail", func() error { _, err := p.SignUp(ctx, "cy@example.com", "123"); return err }, CodeWeakPassword},
		{"invalid email", func() error { return p.SendPasswordReset(ctx, "nope") }, CodeInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.call()); got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFirebaseBadKey(t *testing.T) {
	srv := newFirebaseServer(t)
	defer srv.Close()
	p, _ := NewFirebase("wrong", srv.URL)
	_, err := p.SignIn(context.Background(), "ann@example.com", "secret1")
	if err == nil {
		t.Fatal("expected error")
	}
	if CodeOf(err) != "API key not valid." {
		t.Errorf("unexpected code %q", CodeOf(err))
	}
}

func TestParseFirebaseErrorWithoutBody(t *testing.T) {
	err := parseFirebaseError(http.StatusInternalServerError, []byte("<html>oops</html>"))
	if err == nil || CodeOf(err) != "" {
		t.Errorf("expected plain error, got %v", err)
	}
}
