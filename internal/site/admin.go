package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/markeidelman/clinicweb/auth/apikey"
	"github.com/markeidelman/clinicweb/httputil"
	"github.com/markeidelman/clinicweb/internal/rebuild"
	"github.com/markeidelman/clinicweb/pantry/pprof"
	"go.uber.org/zap"
)

type hookResult struct {
	Hook       string `json:"hook"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
}

// adminRoutes are operator endpoints behind the admin key:
//
//	POST /cache/purge   drop cached published content
//	POST /rebuild       call every deploy hook now
//	GET  /debug/pprof/*
func adminRoutes(key string, b *Backends, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(apikey.Require(key, "clinicweb-admin", logger))

	r.Post("/cache/purge", func(w http.ResponseWriter, r *http.Request) {
		if err := b.CMS.Purge(r.Context()); err != nil {
			logger.Error("manual cache purge failed", zap.Error(err))
			httputil.JSONErrorSimple(w, http.StatusBadGateway, "Cache purge failed")
			return
		}
		logger.Info("content cache purged manually")
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"purged": true})
	})

	r.Post("/rebuild", func(w http.ResponseWriter, r *http.Request) {
		results := b.Rebuild.Trigger(r.Context(), rebuild.Notification{Operation: "manual"})
		out := make([]hookResult, len(results))
		for i, res := range results {
			out[i] = hookResult{
				Hook:       res.Hook,
				Success:    res.Success,
				StatusCode: res.StatusCode,
				Attempts:   res.Attempts,
			}
			if res.Err != nil {
				out[i].Error = res.Err.Error()
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"hooks": out})
	})

	pprof.Mount(r)
	return r
}
