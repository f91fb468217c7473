// i18n/middleware.go
package i18n

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// Middleware stores the detected language in the request context and sets
// Content-Language on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := Detect(r)
		w.Header().Set("Content-Language", string(l))
		next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), l)))
	})
}

// WithLang returns a context carrying l.
func WithLang(ctx context.Context, l Lang) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the language stored by Middleware, or Default.
func FromContext(ctx context.Context) Lang {
	if l, ok := ctx.Value(ctxKey{}).(Lang); ok {
		return l
	}
	return Default
}
