package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "LoginEmailNotFound"); got != "Email wasn't found. Please sign up." {
		t.Errorf("T(LoginEmailNotFound) = %q", got)
	}
	if got := T(ctx, "NoResponse"); got != "No response in the selected period." {
		t.Errorf("T(NoResponse) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "LogOut"); got != "Выйти" {
		t.Errorf("T(LogOut) = %q, want 'Выйти'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	data := map[string]any{"Group": "3"}

	en := initLang(t, "en")
	if got := Tp(en, "ResultsTitlePre", 0, data); got != "Pre-survey results of Group: 3 | No. of responses: 0" {
		t.Errorf("Tp(ResultsTitlePre, 0) = %q", got)
	}

	ru := initLang(t, "ru")
	if got := Tp(ru, "ResultsTitlePost", 5, data); got != "Результаты группы 3 (конец недели) | 5 ответов" {
		t.Errorf("Tp(ResultsTitlePost, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "Welcome", map[string]any{"Name": "Ann", "Week": 4})
	if got != "Welcome: Ann to Week 4" {
		t.Errorf("Td(Welcome) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	langs := Languages()
	if !slices.Contains(langs, "en") || !slices.Contains(langs, "ru") {
		t.Errorf("Languages = %v", langs)
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "LogOut")
	}))

	tests := map[string]string{
		"":                   "Log out",
		"ru-RU,ru;q=0.9":     "Выйти",
		"fr-FR,fr;q=0.9":     "Log out",
		"de;q=0.5, ru;q=0.8": "Выйти",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Accept-Language", header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != want {
			t.Errorf("Accept-Language %q: got %q, want %q", header, got, want)
		}
	}
}
