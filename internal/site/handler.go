package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/markeidelman/clinicweb/config"
	"github.com/markeidelman/clinicweb/internal/content"
	"github.com/markeidelman/clinicweb/internal/preview"
	"github.com/markeidelman/clinicweb/internal/revalidate"
	"github.com/markeidelman/clinicweb/metrics"
	"github.com/markeidelman/clinicweb/pantry/health"
	"github.com/markeidelman/clinicweb/pantry/i18n"
	"github.com/markeidelman/clinicweb/pantry/ratelimit"
	"github.com/markeidelman/clinicweb/pantry/version"
	"github.com/markeidelman/clinicweb/router"
	"go.uber.org/zap"
)

// BuildHandler mounts every site route on the standard router.
//
//	GET  /api/preview          enter preview mode
//	GET  /api/exit-preview     leave preview mode
//	POST /api/revalidate       signed content-change webhook
//	GET  /api/content/{name}   registered CMS query as JSON
//	GET  /api/images/{ref}     image asset URLs and srcset
//	GET  /health, /version, /metrics
//	/admin/*                   operator endpoints, only with an admin key
func BuildHandler(core *config.CoreConfig, cfg Config, b *Backends, logger *zap.Logger) (http.Handler, error) {
	r := router.New(core, logger)

	pv := preview.New(preview.Config{
		Secret: cfg.PreviewSecret,
		MaxAge: cfg.PreviewCookieMaxAge,
		Secure: cfg.SecureCookies,
		Logger: logger.With(zap.String("component", "preview")),
	})
	r.Group(func(r chi.Router) {
		if cfg.PreviewRatePerMin > 0 {
			r.Use(ratelimit.Middleware(ratelimit.Config{
				PerSecond: float64(cfg.PreviewRatePerMin) / 60,
				Burst:     max(cfg.PreviewRatePerMin/3, 1),
				OnLimited: func(r *http.Request, key string) {
					metrics.PreviewTransition("enter", "limited")
					logger.Warn("preview entry rate limited", zap.String("client", key))
				},
			}))
		}
		r.Get("/api/preview", pv.Enter)
	})
	r.Get("/api/exit-preview", pv.Exit)

	rv := revalidate.New(revalidate.Config{
		Secret:       cfg.WebhookSecret,
		MaxBodyBytes: cfg.WebhookMaxBodyBytes,
		Purger:       b.CMS,
		Rebuilder:    b.Rebuild,
		Logger:       logger.With(zap.String("component", "revalidate")),
	})
	r.Method(http.MethodPost, "/api/revalidate", rv)

	r.Route("/api/content", func(r chi.Router) {
		r.Use(i18n.Middleware, preview.Detect)
		r.Mount("/", content.New(b.CMS, logger.With(zap.String("component", "content"))).Routes())
	})

	r.Mount("/api/images", content.ImageRoutes(b.Images))

	if cfg.AdminAPIKey != "" {
		r.Mount("/admin", adminRoutes(cfg.AdminAPIKey, b, logger.With(zap.String("component", "admin"))))
	}

	checks := map[string]health.Check{"cms": b.CMS.Check}
	if b.Cache != nil {
		checks["cache"] = b.Cache.Ping
	}
	r.Method(http.MethodGet, "/health", health.Handler(checks, 0, logger))
	r.Method(http.MethodGet, "/version", version.Handler())
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r, nil
}
