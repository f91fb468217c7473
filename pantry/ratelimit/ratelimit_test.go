package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	kl := NewKeyLimiter(1, 2, time.Minute)
	kl.now = func() time.Time { return now }

	if !kl.Allow("a") || !kl.Allow("a") {
		t.Fatal("burst of 2 should pass")
	}
	if kl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !kl.Allow("b") {
		t.Fatal("keys are independent")
	}

	now = now.Add(time.Second)
	if !kl.Allow("a") {
		t.Fatal("one token refills per second")
	}
}

func TestKeyLimiterForgetsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	kl := NewKeyLimiter(1, 1, time.Minute)
	kl.now = func() time.Time { return now }

	kl.Allow("a")
	kl.Allow("b")
	now = now.Add(2 * time.Minute)
	kl.Allow("c")
	if got := kl.Size(); got != 1 {
		t.Errorf("Size = %d, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	var limited string
	h := Middleware(Config{
		PerSecond: 0.001,
		Burst:     1,
		OnLimited: func(r *http.Request, key string) { limited = key },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/preview", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	if rec := do("203.0.113.7:5000"); rec.Code != http.StatusOK {
		t.Fatalf("first = %d", rec.Code)
	}
	rec := do("203.0.113.7:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429", rec.Code)
	}
	if rec.Body.String() != "{\"error\":\"Too many requests\"}\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if limited != "203.0.113.7" {
		t.Errorf("OnLimited key = %q", limited)
	}
	if rec := do("198.51.100.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("other client = %d", rec.Code)
	}
}
