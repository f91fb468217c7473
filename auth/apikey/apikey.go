// auth/apikey/apikey.go
package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/markeidelman/clinicweb/httputil"
	"go.uber.org/zap"
)

// Require guards a route group with a static key, read from
// "Authorization: Bearer <key>" or "X-API-Key". Keys are compared in
// constant time. An empty expected key refuses every request with 500.
func Require(expected, realm string, logger *zap.Logger) func(next http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	want := sha256.Sum256([]byte(expected))
	if realm == "" {
		realm = "clinicweb"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				logger.Warn("apikey.Require used with empty expected key")
				httputil.JSONErrorSimple(w, http.StatusInternalServerError, "Server misconfigured")
				return
			}

			key, ok := fromRequest(r)
			have := sha256.Sum256([]byte(key))
			if !ok || subtle.ConstantTimeCompare(want[:], have[:]) != 1 {
				logger.Warn("API key unauthorized",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_ip", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`"`)
				httputil.JSONErrorSimple(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromRequest(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		if token := strings.TrimSpace(auth[7:]); token != "" {
			return token, true
		}
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, true
	}
	return "", false
}
