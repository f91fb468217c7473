// middleware/cors.go
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/markeidelman/clinicweb/config"
)

// CORSFromConfig applies CORS from the CoreConfig CORS section. The content
// API is read by the static front end, which may live on another origin in
// development. Disabled CORS yields a no-op.
func CORSFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.CORS.EnableCORS {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   coreCfg.CORS.CORSAllowedOrigins,
		AllowedMethods:   coreCfg.CORS.CORSAllowedMethods,
		AllowedHeaders:   coreCfg.CORS.CORSAllowedHeaders,
		ExposedHeaders:   coreCfg.CORS.CORSExposedHeaders,
		AllowCredentials: coreCfg.CORS.CORSAllowCredentials,
		MaxAge:           coreCfg.CORS.CORSMaxAge,
	})
}
