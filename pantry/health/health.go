// health/health.go
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/markeidelman/clinicweb/httputil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Check probes one dependency. It returns nil when the dependency is usable.
type Check func(ctx context.Context) error

// Response is the body written by Handler.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DefaultTimeout bounds each check when Handler is given zero.
const DefaultTimeout = 2 * time.Second

// Handler runs every check concurrently, each under its own timeout, and
// answers 200 {"status":"ok"} or 503 {"status":"error"} with per-check
// results. With no checks it is a plain liveness probe.
//
// A nil Check counts as healthy, so optional dependencies can be listed
// unconditionally:
//
//	health.Handler(map[string]health.Check{"cache": maybeNil}, 0, logger)
func Handler(checks map[string]Check, timeout time.Duration, logger *zap.Logger) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
			return
		}

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(checks))
			failed  bool
		)
		g, ctx := errgroup.WithContext(r.Context())
		for name, check := range checks {
			g.Go(func() error {
				msg := "ok"
				if check != nil {
					cctx, cancel := context.WithTimeout(ctx, timeout)
					err := check(cctx)
					cancel()
					if err != nil {
						msg = "error: " + err.Error()
						logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
					}
				}
				mu.Lock()
				results[name] = msg
				if msg != "ok" {
					failed = true
				}
				mu.Unlock()
				// Never cancel siblings; every check reports.
				return nil
			})
		}
		_ = g.Wait()

		if failed {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: "error", Checks: results})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok", Checks: results})
	})
}
