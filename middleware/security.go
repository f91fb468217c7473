// middleware/security.go
package middleware

import (
	"net/http"
	"strconv"

	"github.com/markeidelman/clinicweb/config"
)

// SecurityHeadersOptions configures the security headers middleware.
// An empty string disables the corresponding header.
type SecurityHeadersOptions struct {
	// XFrameOptions is "DENY" or "SAMEORIGIN". Preview mode is rendered by
	// the Studio inside an iframe on its own origin, so the default allows
	// same-origin framing only.
	XFrameOptions string

	XContentTypeOptions string
	ReferrerPolicy      string

	// HSTSMaxAge in seconds. Sent only over TLS. Zero disables HSTS.
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool

	// ContentSecurityPolicy is site specific and empty by default.
	ContentSecurityPolicy string
}

// DefaultSecurityHeadersOptions returns the headers every response carries
// unless configuration says otherwise.
func DefaultSecurityHeadersOptions() SecurityHeadersOptions {
	return SecurityHeadersOptions{
		XFrameOptions:         "SAMEORIGIN",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
	}
}

// SecurityHeaders returns middleware that sets the configured headers before
// calling next.
func SecurityHeaders(opts SecurityHeadersOptions) func(next http.Handler) http.Handler {
	var hsts string
	if opts.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(opts.HSTSMaxAge)
		if opts.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if opts.XFrameOptions != "" {
				h.Set("X-Frame-Options", opts.XFrameOptions)
			}
			if opts.XContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", opts.XContentTypeOptions)
			}
			if opts.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", opts.ReferrerPolicy)
			}
			// Plain-HTTP dev servers must not pin browsers to HTTPS.
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			if opts.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", opts.ContentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersFromConfig builds the middleware from CoreConfig. A nil
// config or enable_security_headers=false yields a no-op.
func SecurityHeadersFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.Security.EnableSecurityHeaders {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	opts := DefaultSecurityHeadersOptions()
	opts.XFrameOptions = coreCfg.Security.XFrameOptions
	opts.ReferrerPolicy = coreCfg.Security.ReferrerPolicy
	opts.HSTSMaxAge = coreCfg.Security.HSTSMaxAge
	opts.ContentSecurityPolicy = coreCfg.Security.ContentSecurityPolicy
	return SecurityHeaders(opts)
}
