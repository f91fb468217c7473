package version

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "dev"
	if got := String(); got != "dev" {
		t.Errorf("String() = %q", got)
	}
	Version, Commit, BuildTime = "1.4.0", "abc123", "2026-01-15T10:30:00Z"
	if got, want := String(), "1.4.0 (abc123, built 2026-01-15T10:30:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Version != Version || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
	if len(Fields()) != 4 {
		t.Errorf("Fields() len = %d", len(Fields()))
	}
}
