package apikey

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequire(t *testing.T) {
	h := Require("admin-key", "", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"bearer", "Authorization", "Bearer admin-key", http.StatusNoContent},
		{"bearer lowercase", "Authorization", "bearer admin-key", http.StatusNoContent},
		{"x-api-key", "X-API-Key", "admin-key", http.StatusNoContent},
		{"wrong", "X-API-Key", "admin-kez", http.StatusUnauthorized},
		{"prefix", "X-API-Key", "admin", http.StatusUnauthorized},
		{"basic", "Authorization", "Basic YWRtaW4=", http.StatusUnauthorized},
		{"none", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
		if tt.header != "" {
			r.Header.Set(tt.header, tt.value)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
		if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") != `Bearer realm="clinicweb"` {
			t.Errorf("%s: WWW-Authenticate = %q", tt.name, rec.Header().Get("WWW-Authenticate"))
		}
	}
}

func TestRequireEmptyKey(t *testing.T) {
	h := Require("  ", "admin", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-API-Key", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
