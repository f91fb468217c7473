// pprof/pprof.go
package pprof

import (
	"net/http"
	stdpprof "net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// Mount attaches the Go profiling handlers under /debug/pprof on r. Mount
// it inside a group that already requires an admin key.
func Mount(r chi.Router) {
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", stdpprof.Index)
		r.Get("/cmdline", stdpprof.Cmdline)
		r.Get("/profile", stdpprof.Profile)
		r.Get("/symbol", stdpprof.Symbol)
		r.Post("/symbol", stdpprof.Symbol)
		r.Get("/trace", stdpprof.Trace)
		// heap, goroutine, allocs, block, mutex, threadcreate. Index only
		// resolves names under a root /debug/pprof/, so look them up here.
		r.Get("/{name}", func(w http.ResponseWriter, r *http.Request) {
			stdpprof.Handler(chi.URLParam(r, "name")).ServeHTTP(w, r)
		})
	})
}
