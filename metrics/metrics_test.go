package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"שלום", 3, "ש"}, // each Hebrew letter is two bytes
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRebuildTriggerCounts(t *testing.T) {
	before := testutil.ToFloat64(rebuildTriggers.WithLabelValues("vercel", "ok"))
	RebuildTrigger("vercel", "ok")
	RebuildTrigger("vercel", "ok")
	after := testutil.ToFloat64(rebuildTriggers.WithLabelValues("vercel", "ok"))
	if after-before != 2 {
		t.Errorf("counter delta = %v, want 2", after-before)
	}
}

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	RegisterDefault(zap.NewNop())

	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/api/content/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/content/faqs", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `path="/api/content/{name}"`) {
		t.Error("expected the route pattern as the path label")
	}
	if strings.Contains(body, `path="/api/content/faqs"`) {
		t.Error("raw path leaked into labels")
	}
}
