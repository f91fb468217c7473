// Package preview switches editors between published and draft content.
//
// Preview mode is a cookie. The entry endpoint sets it after checking the
// shared secret, the exit endpoint clears it, and Detect exposes the flag
// to downstream handlers through the request context.
package preview

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/markeidelman/clinicweb/httputil"
	"github.com/markeidelman/clinicweb/metrics"
	"github.com/markeidelman/clinicweb/pantry/urlutil"
	"go.uber.org/zap"
)

const (
	CookieName = "sanity-preview"

	// DefaultMaxAge is how long a preview session lasts.
	DefaultMaxAge = time.Hour
)

// Config configures the preview endpoints.
type Config struct {
	// Secret is the shared preview secret. Empty rejects every entry.
	Secret string

	// MaxAge defaults to DefaultMaxAge.
	MaxAge time.Duration

	// Secure marks the cookie Secure. Set in production.
	Secure bool

	Logger *zap.Logger
}

// Handler serves the entry and exit endpoints.
type Handler struct {
	secret []byte
	maxAge time.Duration
	secure bool
	logger *zap.Logger
}

func New(cfg Config) *Handler {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{
		secret: []byte(cfg.Secret),
		maxAge: cfg.MaxAge,
		secure: cfg.Secure,
		logger: cfg.Logger,
	}
}

// Enter handles GET /api/preview?secret=...&slug=...
//
// A wrong or missing secret is a 401. Otherwise the preview cookie is set
// and the client is sent to slug, reduced to a same-origin path ("/" when
// slug is absent or unsafe).
func (h *Handler) Enter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !h.secretMatches(q.Get("secret")) {
		metrics.PreviewTransition("enter", "denied")
		h.logger.Warn("preview entry denied", zap.String("remote_ip", r.RemoteAddr))
		httputil.JSONErrorSimple(w, http.StatusUnauthorized, "Invalid preview secret")
		return
	}

	dest := urlutil.SafeRedirect(q.Get("slug"), "/", false)
	h.Enable(w)
	metrics.PreviewTransition("enter", "ok")
	h.logger.Info("preview enabled", zap.String("redirect", dest))
	redirect(w, dest)
}

// Exit handles GET /api/exit-preview?returnUrl=...
//
// The cookie is cleared and the client is sent back to returnUrl, query
// and fragment included, or "/" when it is absent or unsafe.
func (h *Handler) Exit(w http.ResponseWriter, r *http.Request) {
	dest := urlutil.SafeRedirect(r.URL.Query().Get("returnUrl"), "/", true)
	h.Disable(w)
	metrics.PreviewTransition("exit", "ok")
	h.logger.Info("preview disabled", zap.String("redirect", dest))
	redirect(w, dest)
}

// secretMatches compares in constant time. Hashing first keeps the
// comparison length-independent.
func (h *Handler) secretMatches(got string) bool {
	if len(h.secret) == 0 || got == "" {
		return false
	}
	want := sha256.Sum256(h.secret)
	have := sha256.Sum256([]byte(got))
	return subtle.ConstantTimeCompare(want[:], have[:]) == 1
}

// Enable sets the preview cookie.
func (h *Handler) Enable(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "true",
		Path:     "/",
		MaxAge:   int(h.maxAge / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Disable deletes the preview cookie.
func (h *Handler) Disable(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// IsEnabled reports whether r carries the preview cookie.
func IsEnabled(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	return err == nil && c.Value == "true"
}

// redirect writes a 307. dest is already a validated same-origin path, so
// it is used as the Location verbatim.
func redirect(w http.ResponseWriter, dest string) {
	w.Header().Set("Location", dest)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusTemporaryRedirect)
}

type ctxKey struct{}

// Detect records whether the request is in preview mode; read it with
// FromContext.
func Detect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithPreview(r.Context(), IsEnabled(r))))
	})
}

// WithPreview returns a context carrying the preview flag.
func WithPreview(ctx context.Context, on bool) context.Context {
	return context.WithValue(ctx, ctxKey{}, on)
}

// FromContext reports the flag stored by Detect. False when absent.
func FromContext(ctx context.Context) bool {
	on, _ := ctx.Value(ctxKey{}).(bool)
	return on
}
