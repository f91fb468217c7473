package site

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/markeidelman/clinicweb/config"
	"github.com/markeidelman/clinicweb/internal/rebuild"
	"github.com/markeidelman/clinicweb/internal/sanity"
	"github.com/markeidelman/clinicweb/pantry/cache"
	"github.com/markeidelman/clinicweb/pantry/retry"
	"github.com/markeidelman/clinicweb/pantry/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	previewSecret = "preview-secret"
	webhookSecret = "webhook-secret"
	adminKey      = "admin-key"
)

type testSite struct {
	handler   http.Handler
	hookCalls *atomic.Int32
	cmsCalls  *atomic.Int32
	cache     *cache.Memory
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	ts := &testSite{hookCalls: new(atomic.Int32), cmsCalls: new(atomic.Int32)}

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hookCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(hook.Close)

	cms := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.cmsCalls.Add(1)
		fmt.Fprint(w, `{"result":[{"_id":"clinic-1"}]}`)
	}))
	t.Cleanup(cms.Close)

	ts.cache = cache.NewMemory(0)
	t.Cleanup(func() { _ = ts.cache.Close() })

	client, err := sanity.New(sanity.Config{
		ProjectID:  "p1",
		Dataset:    "production",
		CDNBaseURL: cms.URL,
		APIBaseURL: cms.URL,
		Cache:      ts.cache,
		CacheTTL:   time.Minute,
	})
	require.NoError(t, err)

	cfg := Config{
		PreviewSecret:       previewSecret,
		WebhookSecret:       webhookSecret,
		PreviewCookieMaxAge: time.Hour,
		PreviewRatePerMin:   6,
		AdminAPIKey:         adminKey,
	}
	b := &Backends{
		Cache: ts.cache,
		CMS:   client,
		Rebuild: rebuild.New(rebuild.Config{
			Hooks: []rebuild.Hook{{Name: "vercel", URL: hook.URL}, {Name: "netlify", URL: hook.URL}},
			Sender: webhook.NewSender(webhook.SenderConfig{
				Retry: retry.Config{MaxAttempts: 1},
			}),
		}),
		Images: sanity.ImageURLs{ProjectID: "p1", Dataset: "production"},
	}

	h, err := BuildHandler(&config.CoreConfig{Env: "dev"}, cfg, b, zap.NewNop())
	require.NoError(t, err)
	ts.handler = h
	return ts
}

func (ts *testSite) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	return rec
}

func TestExitPreviewRejectsEncodedTraversal(t *testing.T) {
	ts := newTestSite(t)
	q := url.Values{"returnUrl": {"/about%2f..%2fadmin"}}
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/exit-preview?"+q.Encode(), nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestEnterPreviewRedirectsToSlug(t *testing.T) {
	ts := newTestSite(t)
	q := url.Values{"secret": {previewSecret}, "slug": {"/study"}}
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/preview?"+q.Encode(), nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/study", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "sanity-preview=true")
}

func TestWebhookWithValidSignatureTriggersHooks(t *testing.T) {
	ts := newTestSite(t)
	ctx := context.Background()
	require.NoError(t, ts.cache.Set(ctx, "stale", []byte("x"), 0))

	body := `{"_type":"service","_id":"svc-1","operation":"create"}`
	r := httptest.NewRequest(http.MethodPost, "/api/revalidate", strings.NewReader(body))
	r.Header.Set(webhook.SanitySignatureHeader, webhook.ComputeHMAC([]byte(body), webhookSecret))
	rec := ts.do(r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revalidated":true,"documentType":"service","documentId":"svc-1"}`, rec.Body.String())
	assert.EqualValues(t, 2, ts.hookCalls.Load())
	assert.Zero(t, ts.cache.Len(), "webhook purges the content cache")
}

func TestWebhookWithStaleSignatureIsRejected(t *testing.T) {
	ts := newTestSite(t)
	original := `{"_type":"service","_id":"svc-1"}`
	stale := webhook.ComputeHMAC([]byte(original), webhookSecret)

	r := httptest.NewRequest(http.MethodPost, "/api/revalidate", strings.NewReader(`{"_type":"service","_id":"svc-2"}`))
	r.Header.Set(webhook.SanitySignatureHeader, stale)
	rec := ts.do(r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
	assert.Zero(t, ts.hookCalls.Load())
}

func TestPreviewEntryIsRateLimited(t *testing.T) {
	ts := newTestSite(t)
	q := url.Values{"secret": {"guess"}}
	var codes []int
	for range 3 {
		r := httptest.NewRequest(http.MethodGet, "/api/preview?"+q.Encode(), nil)
		r.RemoteAddr = "203.0.113.9:4000"
		codes = append(codes, ts.do(r).Code)
	}
	assert.Equal(t, []int{401, 401, 429}, codes)
}

func TestPreviewRateLimitIgnoresForwardedFor(t *testing.T) {
	ts := newTestSite(t)
	q := url.Values{"secret": {"guess"}}
	var codes []int
	for i := range 3 {
		r := httptest.NewRequest(http.MethodGet, "/api/preview?"+q.Encode(), nil)
		r.RemoteAddr = "203.0.113.9:4000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		r.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i+1))
		codes = append(codes, ts.do(r).Code)
	}
	assert.Equal(t, []int{401, 401, 429}, codes)
}

func TestContentAndOperationalRoutes(t *testing.T) {
	ts := newTestSite(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/content/clinics?lang=en", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en", rec.Header().Get("Content-Language"))
	ts.do(httptest.NewRequest(http.MethodGet, "/api/content/clinics?lang=en", nil))
	assert.EqualValues(t, 1, ts.cmsCalls.Load(), "second published read is cached")

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"cms":"ok","cache":"ok"}}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/version", nil)).Code)
	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/api/images/image-a1-10x10-png", nil)).Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/revalidate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigFromValues(t *testing.T) {
	vals := config.AppConfigValues{
		"sanity_preview_secret":    "p",
		"sanity_webhook_secret":    "w",
		"sanity_project_id":        "fallback",
		"public_sanity_project_id": "abc123",
		"sanity_dataset":           "production",
		"vercel_deploy_hook_url":   "https://api.vercel.com/v1/integrations/deploy/prj/x",
		"deploy_hook_urls":         []string{"staging=https://hooks.example.com/b"},
		"content_cache_ttl":        "10m",
		"rebuild_timeout":          "45s",
		"webhook_max_body_bytes":   2048,
		"preview_rate_per_minute":  "12",
	}
	cfg, err := ConfigFromValues(&config.CoreConfig{Env: "prod"}, vals)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.SanityProjectID)
	assert.Equal(t, sanity.DefaultAPIVersion, cfg.SanityAPIVersion)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, 10*time.Minute, cfg.ContentCacheTTL)
	assert.Equal(t, 45*time.Second, cfg.RebuildTimeout)
	assert.Equal(t, time.Hour, cfg.PreviewCookieMaxAge)
	assert.EqualValues(t, 2048, cfg.WebhookMaxBodyBytes)
	assert.Equal(t, 12, cfg.PreviewRatePerMin)
	assert.Equal(t, []rebuild.Hook{
		{Name: "vercel", URL: "https://api.vercel.com/v1/integrations/deploy/prj/x"},
		{Name: "staging", URL: "https://hooks.example.com/b"},
	}, cfg.DeployHooks)

	_, err = ConfigFromValues(nil, config.AppConfigValues{"sanity_project_id": "abc"})
	assert.Error(t, err)

	vals["netlify_build_hook_url"] = "not a url"
	_, err = ConfigFromValues(nil, vals)
	assert.Error(t, err)
}

func TestRebuildBudget(t *testing.T) {
	tests := []struct {
		want, write, got time.Duration
	}{
		{20 * time.Second, 30 * time.Second, 20 * time.Second},
		{30 * time.Second, 30 * time.Second, 25 * time.Second},
		{3 * time.Second, time.Second, 750 * time.Millisecond},
		{time.Minute, 0, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.got, rebuildBudget(tt.want, tt.write), "rebuild %v, write %v", tt.want, tt.write)
	}
}

func TestSlowHookStillGetsWebhookResponse(t *testing.T) {
	release := make(chan struct{})
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(hook.Close)
	t.Cleanup(func() { close(release) })

	core := &config.CoreConfig{Env: "dev"}
	core.HTTP.WriteTimeout = 2 * time.Second
	cfg, err := ConfigFromValues(core, config.AppConfigValues{
		"sanity_webhook_secret": webhookSecret,
		"sanity_project_id":     "p1",
		"sanity_dataset":        "production",
		"deploy_hook_urls":      []string{"slow=" + hook.URL},
		"rebuild_timeout":       "5s",
	})
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, cfg.RebuildTimeout)

	mem := cache.NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })
	client, err := sanity.New(sanity.Config{ProjectID: "p1", Dataset: "production", Cache: mem})
	require.NoError(t, err)
	b := &Backends{
		Cache: mem,
		CMS:   client,
		Rebuild: rebuild.New(rebuild.Config{
			Hooks:   cfg.DeployHooks,
			Timeout: cfg.RebuildTimeout,
			Sender:  webhook.NewSender(webhook.SenderConfig{Retry: retry.Config{MaxAttempts: 1}}),
		}),
		Images: sanity.ImageURLs{ProjectID: "p1", Dataset: "production"},
	}
	h, err := BuildHandler(core, cfg, b, zap.NewNop())
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(h)
	srv.Config.WriteTimeout = core.HTTP.WriteTimeout
	srv.Start()
	t.Cleanup(srv.Close)

	body := `{"_type":"clinic","_id":"clinic-1"}`
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/revalidate", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(webhook.SanitySignatureHeader, webhook.ComputeHMAC([]byte(body), webhookSecret))

	resp, err := srv.Client().Do(req)
	require.NoError(t, err, "the response must beat the server write timeout")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestSite(t)
	require.NoError(t, ts.cache.Set(context.Background(), "k", []byte("v"), 0))

	r := httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
	assert.Equal(t, http.StatusUnauthorized, ts.do(r).Code)
	assert.Equal(t, 1, ts.cache.Len())

	r = httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
	r.Header.Set("Authorization", "Bearer "+adminKey)
	rec := ts.do(r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"purged":true}`, rec.Body.String())
	assert.Zero(t, ts.cache.Len())

	r = httptest.NewRequest(http.MethodPost, "/admin/rebuild", nil)
	r.Header.Set("X-API-Key", adminKey)
	rec = ts.do(r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hook":"vercel"`)
	assert.EqualValues(t, 2, ts.hookCalls.Load())

	r = httptest.NewRequest(http.MethodGet, "/admin/debug/pprof/", nil)
	r.Header.Set("X-API-Key", adminKey)
	assert.Equal(t, http.StatusOK, ts.do(r).Code)
}
