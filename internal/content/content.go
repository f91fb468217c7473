// Package content serves registered CMS queries as JSON for the site's
// client-side islands.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/markeidelman/clinicweb/httputil"
	"github.com/markeidelman/clinicweb/internal/preview"
	"github.com/markeidelman/clinicweb/internal/sanity"
	"github.com/markeidelman/clinicweb/pantry/i18n"
	"go.uber.org/zap"
)

// Fetcher runs a GROQ query.
type Fetcher interface {
	Fetch(ctx context.Context, query string, params map[string]any, preview bool) (json.RawMessage, error)
}

// Response wraps a query result with the language it was requested in.
type Response struct {
	Name    string          `json:"name"`
	Lang    i18n.Lang       `json:"lang"`
	Dir     string          `json:"dir"`
	Preview bool            `json:"preview"`
	Data    json.RawMessage `json:"data"`
}

type Handler struct {
	cms    Fetcher
	logger *zap.Logger
}

func New(cms Fetcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cms: cms, logger: logger}
}

// Routes mounts GET /{name}. Expects i18n.Middleware and preview.Detect
// upstream.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{name}", h.get)
	return r
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q, ok := sanity.Lookup(name)
	if !ok {
		httputil.JSONErrorSimple(w, http.StatusNotFound, "Unknown content")
		return
	}

	var params map[string]any
	for _, p := range q.Params {
		v := r.URL.Query().Get(p)
		if v == "" {
			httputil.JSONError(w, http.StatusBadRequest, "Missing parameter", p)
			return
		}
		if params == nil {
			params = make(map[string]any, len(q.Params))
		}
		params[p] = v
	}

	ctx := r.Context()
	lang := i18n.FromContext(ctx)
	inPreview := preview.FromContext(ctx)

	data, err := h.cms.Fetch(ctx, q.GROQ, params, inPreview)
	if err != nil {
		if errors.Is(err, sanity.ErrUnavailable) {
			w.Header().Set("Retry-After", "30")
			httputil.JSONErrorSimple(w, http.StatusServiceUnavailable, "Content temporarily unavailable")
			return
		}
		h.logger.Error("content query failed", zap.String("name", name), zap.Error(err))
		httputil.JSONErrorSimple(w, http.StatusBadGateway, "Content query failed")
		return
	}

	if inPreview {
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=60")
	}
	w.Header().Set("Content-Language", string(lang))
	w.Header().Add("Vary", "Accept-Language")
	w.Header().Add("Vary", "Cookie")

	dir := "ltr"
	if i18n.IsRTL(lang) {
		dir = "rtl"
	}
	httputil.WriteJSON(w, http.StatusOK, Response{
		Name:    name,
		Lang:    lang,
		Dir:     dir,
		Preview: inPreview,
		Data:    data,
	})
}
