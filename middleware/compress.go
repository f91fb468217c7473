// middleware/compress.go
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/markeidelman/clinicweb/config"
	"go.uber.org/zap"
)

// compressibleTypes are the content types this service produces that are
// worth compressing. Redirects and 204s have no body.
var compressibleTypes = []string{
	"application/json",
	"text/plain",
	"text/html",
}

// CompressFromConfig returns gzip/deflate compression at
// coreCfg.CompressionLevel when enable_compression is set, else a no-op.
// Out-of-range levels are clamped with a warning; config validation should
// have rejected them already.
func CompressFromConfig(coreCfg *config.CoreConfig, logger *zap.Logger) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.EnableCompression {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return Compress(coreCfg.CompressionLevel, logger)
}

// Compress returns compression middleware at level (1 fastest, 9 smallest).
func Compress(level int, logger *zap.Logger) func(next http.Handler) http.Handler {
	clamped := min(max(level, 1), 9)
	if clamped != level && logger != nil {
		logger.Warn("compression level clamped",
			zap.Int("requested", level),
			zap.Int("level", clamped))
	}
	return middleware.Compress(clamped, compressibleTypes...)
}
