// router/router.go
package router

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/markeidelman/clinicweb/config"
	"github.com/markeidelman/clinicweb/logging"
	"github.com/markeidelman/clinicweb/metrics"
	"github.com/markeidelman/clinicweb/middleware"
	"go.uber.org/zap"
)

// New creates a chi.Router with the standard middleware stack:
//   - RequestID, and RealIP for trusted proxies only
//   - Recoverer (panic → JSON 500)
//   - security headers, CORS and compression per config
//   - body size limit (MaxRequestBodyBytes)
//   - metrics and request logging (query secrets redacted)
//   - JSON NotFound / MethodNotAllowed handlers
//
// Routes are mounted by the caller.
func New(coreCfg *config.CoreConfig, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RealIPFromConfig(coreCfg))
	r.Use(logging.Recoverer(logger))

	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.CompressFromConfig(coreCfg, logger))

	var maxBody int64
	if coreCfg != nil {
		maxBody = coreCfg.MaxRequestBodyBytes
	}
	r.Use(middleware.LimitBodySize(maxBody))

	r.Use(metrics.HTTPMetrics)
	r.Use(logging.RequestLogger(logger))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
