package logging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"slug=%2Fabout", "slug=%2Fabout"},
		{"secret=hunter2&slug=/study", "secret=REDACTED&slug=%2Fstudy"},
		{"SECRET=x", "SECRET=REDACTED"},
		{"token=a&token=b", "token=REDACTED&token=REDACTED"},
		{"bad=%zz", "[unparseable]"},
	}
	for _, tt := range tests {
		if got := RedactQuery(tt.raw); got != tt.want {
			t.Errorf("RedactQuery(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestRequestLoggerNeverLogsSecret(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/preview?secret=topsecret&slug=/about", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTemporaryRedirect) {
		t.Errorf("status field = %v", fields["status"])
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && strings.Contains(s, "topsecret") {
			t.Fatalf("field %q leaked the secret: %q", k, s)
		}
	}
}

func TestRecovererWritesJSON500(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestBuildLoggerInvalidLevelDefaultsToInfo(t *testing.T) {
	logger, err := BuildLogger("chatty", "prod")
	if err != nil {
		t.Fatalf("BuildLogger: %v", err)
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Error("debug should be disabled after falling back to info")
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be enabled")
	}
}
