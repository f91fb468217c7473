package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromPath(t *testing.T) {
	tests := map[string]Lang{
		"/":            Hebrew,
		"":             Hebrew,
		"/clinics":     Hebrew,
		"/en":          English,
		"/en/clinics":  English,
		"/ru/about/":   Russian,
		"/he/services": Hebrew,
		"/fr/services": Hebrew,
		"/english":     Hebrew,
	}
	for in, want := range tests {
		if got := FromPath(in); got != want {
			t.Errorf("FromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathPrefixAndDirection(t *testing.T) {
	if PathPrefix(Hebrew) != "" || PathPrefix(English) != "/en" || PathPrefix(Russian) != "/ru" {
		t.Error("unexpected prefixes")
	}
	if !IsRTL(Hebrew) || IsRTL(English) || IsRTL(Russian) {
		t.Error("only Hebrew is right to left")
	}
	if English.Name() != "English" || Lang("fr").Name() != "" {
		t.Error("unexpected names")
	}
}

func TestParse(t *testing.T) {
	if l, ok := Parse(" EN "); !ok || l != English {
		t.Errorf("Parse(EN) = %q, %v", l, ok)
	}
	if _, ok := Parse("de"); ok {
		t.Error("Parse(de) accepted")
	}
}

func TestMatch(t *testing.T) {
	tests := map[string]Lang{
		"":                        Hebrew,
		"ru-RU,ru;q=0.9,en;q=0.8": Russian,
		"en-US":                   English,
		"de-DE":                   Hebrew,
		"iw":                      Hebrew,
		"not a header;;":          Hebrew,
	}
	for in, want := range tests {
		if got := Match(in); got != want {
			t.Errorf("Match(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/en/clinics?lang=ru", nil)
	r.Header.Set("Accept-Language", "he")
	if got := Detect(r); got != Russian {
		t.Errorf("query: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/en/clinics", nil)
	r.Header.Set("Accept-Language", "ru")
	if got := Detect(r); got != English {
		t.Errorf("path: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/content/faqs", nil)
	r.Header.Set("Accept-Language", "ru")
	if got := Detect(r); got != Russian {
		t.Errorf("header: got %q", got)
	}
}

func TestLookup(t *testing.T) {
	tree := map[string]any{
		"nav": map[string]any{
			"home":  "בית",
			"count": 3,
		},
		"title": "מרפאה",
	}
	tests := map[string]string{
		"nav.home":    "בית",
		"title":       "מרפאה",
		"nav.missing": "nav.missing",
		"nav":         "nav",
		"nav.count":   "nav.count",
		"title.sub":   "title.sub",
	}
	for key, want := range tests {
		if got := Lookup(tree, key); got != want {
			t.Errorf("Lookup(%q) = %q, want %q", key, got, want)
		}
	}
	if got := Lookup(nil, "a.b"); got != "a.b" {
		t.Errorf("nil tree: %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	var seen Lang
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ru/faq", nil))
	if seen != Russian || rec.Header().Get("Content-Language") != "ru" {
		t.Errorf("seen %q, header %q", seen, rec.Header().Get("Content-Language"))
	}
	if FromContext(context.Background()) != Default {
		t.Error("empty context should yield Default")
	}
}
