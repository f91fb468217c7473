package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/markeidelman/clinicweb/internal/preview"
	"github.com/markeidelman/clinicweb/internal/sanity"
	"github.com/markeidelman/clinicweb/pantry/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	data    string
	err     error
	query   string
	params  map[string]any
	preview bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, query string, params map[string]any, preview bool) (json.RawMessage, error) {
	f.query, f.params, f.preview = query, params, preview
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.data), nil
}

func newRouter(f *fakeFetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(i18n.Middleware, preview.Detect)
	r.Mount("/api/content", New(f, nil).Routes())
	return r
}

func get(h http.Handler, target string, previewOn bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if previewOn {
		req.AddCookie(&http.Cookie{Name: preview.CookieName, Value: "true"})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPublishedContent(t *testing.T) {
	f := &fakeFetcher{data: `[{"_id":"faq-1"}]`}
	rec := get(newRouter(f), "/api/content/faqs?lang=ru", false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "ru", rec.Header().Get("Content-Language"))
	assert.JSONEq(t, `{"name":"faqs","lang":"ru","dir":"ltr","preview":false,"data":[{"_id":"faq-1"}]}`, rec.Body.String())

	q, _ := sanity.Lookup("faqs")
	assert.Equal(t, q.GROQ, f.query)
	assert.Nil(t, f.params)
	assert.False(t, f.preview)
}

func TestPreviewContentIsNotCached(t *testing.T) {
	f := &fakeFetcher{data: `{"title":"draft"}`}
	rec := get(newRouter(f), "/api/content/home_page", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.preview)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, i18n.Hebrew, resp.Lang)
	assert.Equal(t, "rtl", resp.Dir)
	assert.True(t, resp.Preview)
}

func TestQueryParams(t *testing.T) {
	f := &fakeFetcher{data: `[]`}
	h := newRouter(f)

	rec := get(h, "/api/content/study_content_by_type", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing parameter","message":"contentType"}`, rec.Body.String())

	rec = get(h, "/api/content/study_content_by_type?contentType=lecture&other=x", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"contentType": "lecture"}, f.params)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		code int
		want string
	}{
		{"unknown", "/api/content/users", nil, 404, `{"error":"Unknown content"}`},
		{"unavailable", "/api/content/clinics", fmt.Errorf("%w: timeout", sanity.ErrUnavailable), 503, `{"error":"Content temporarily unavailable"}`},
		{"bad query", "/api/content/clinics", &sanity.APIError{StatusCode: 400}, 502, `{"error":"Content query failed"}`},
		{"decode", "/api/content/clinics", errors.New("sanity: decode response"), 502, `{"error":"Content query failed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newRouter(&fakeFetcher{err: tt.err}), tt.path, false)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}
