package middleware

import (
	"net/http"

	"github.com/markeidelman/clinicweb/httputil"
	"go.uber.org/zap"
)

// NotFoundHandler logs a 404 and answers {"error":"Not found"}.
// Pass it to chi.Router.NotFound.
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Info("not_found",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		httputil.JSONErrorSimple(w, http.StatusNotFound, "Not found")
	}
}

// MethodNotAllowedHandler logs a 405 and answers {"error":"Method not allowed"}.
// chi has already set the Allow header by the time this runs.
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Info("method_not_allowed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			)
		}
		httputil.JSONErrorSimple(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
