// Package site wires the clinic site's endpoints: configuration, backends
// and the HTTP handler.
package site

import (
	"errors"
	"fmt"
	"time"

	"github.com/markeidelman/clinicweb/config"
	"github.com/markeidelman/clinicweb/internal/rebuild"
	"github.com/markeidelman/clinicweb/internal/sanity"
)

// Keys are the site's configuration keys. With no env prefix each maps to
// its upper-cased name, so SANITY_PROJECT_ID, VERCEL_DEPLOY_HOOK_URL and
// friends work as deployed.
var Keys = []config.AppKey{
	{Name: "sanity_preview_secret", Default: "", Desc: "Shared secret for /api/preview", Secret: true},
	{Name: "sanity_webhook_secret", Default: "", Desc: "HMAC secret for /api/revalidate", Secret: true},
	{Name: "sanity_project_id", Default: "", Desc: "Sanity project ID"},
	{Name: "public_sanity_project_id", Default: "", Desc: "Sanity project ID (public build variable, preferred)"},
	{Name: "sanity_dataset", Default: "", Desc: "Sanity dataset"},
	{Name: "public_sanity_dataset", Default: "", Desc: "Sanity dataset (public build variable, preferred)"},
	{Name: "sanity_api_version", Default: sanity.DefaultAPIVersion, Desc: "Sanity API version date"},
	{Name: "sanity_token", Default: "", Desc: "Sanity read token for draft content", Secret: true},
	{Name: "vercel_deploy_hook_url", Default: "", Desc: "Vercel deploy hook URL", Secret: true},
	{Name: "netlify_build_hook_url", Default: "", Desc: "Netlify build hook URL", Secret: true},
	{Name: "deploy_hook_urls", Default: []string{}, Desc: "Extra deploy hooks, \"url\" or \"name=url\"", Secret: true},
	{Name: "redis_addr", Default: "", Desc: "Redis address for the content cache; empty uses memory"},
	{Name: "redis_password", Default: "", Desc: "Redis password", Secret: true},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "content_cache_ttl", Default: "5m", Desc: "How long published content is cached"},
	{Name: "preview_cookie_max_age", Default: "1h", Desc: "Preview session length"},
	{Name: "rebuild_timeout", Default: "20s", Desc: "Bound on one deploy hook fan-out, retries included; kept below write_timeout"},
	{Name: "webhook_max_body_bytes", Default: 1 << 20, Desc: "Largest accepted webhook body"},
	{Name: "admin_api_key", Default: "", Desc: "Enables /admin (cache purge, manual rebuild, pprof)", Secret: true},
	{Name: "preview_rate_per_minute", Default: 30, Desc: "Preview entry attempts allowed per client IP per minute; 0 disables"},
}

// Config is the typed site configuration, built once at start-up.
type Config struct {
	PreviewSecret       string
	WebhookSecret       string
	PreviewCookieMaxAge time.Duration
	SecureCookies       bool
	PreviewRatePerMin   int
	AdminAPIKey         string

	SanityProjectID  string
	SanityDataset    string
	SanityAPIVersion string
	SanityToken      string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ContentCacheTTL time.Duration

	DeployHooks         []rebuild.Hook
	RebuildTimeout      time.Duration
	WebhookMaxBodyBytes int64
}

// ConfigFromValues validates and converts loaded values. A missing project
// or dataset and malformed hook URLs are errors; missing secrets are not,
// the endpoints that need them refuse requests instead.
func ConfigFromValues(core *config.CoreConfig, v config.AppConfigValues) (Config, error) {
	cfg := Config{
		PreviewSecret:       v.String("sanity_preview_secret"),
		WebhookSecret:       v.String("sanity_webhook_secret"),
		PreviewCookieMaxAge: v.Duration("preview_cookie_max_age", time.Hour),
		SecureCookies:       core != nil && core.IsProd(),
		PreviewRatePerMin:   v.Int("preview_rate_per_minute"),
		AdminAPIKey:         v.String("admin_api_key"),

		SanityProjectID:  firstNonEmpty(v.String("public_sanity_project_id"), v.String("sanity_project_id")),
		SanityDataset:    firstNonEmpty(v.String("public_sanity_dataset"), v.String("sanity_dataset")),
		SanityAPIVersion: firstNonEmpty(v.String("sanity_api_version"), sanity.DefaultAPIVersion),
		SanityToken:      v.String("sanity_token"),

		RedisAddr:       v.String("redis_addr"),
		RedisPassword:   v.String("redis_password"),
		RedisDB:         v.Int("redis_db"),
		ContentCacheTTL: v.Duration("content_cache_ttl", 5*time.Minute),

		RebuildTimeout:      v.Duration("rebuild_timeout", 20*time.Second),
		WebhookMaxBodyBytes: int64(v.Int("webhook_max_body_bytes")),
	}

	if cfg.SanityProjectID == "" || cfg.SanityDataset == "" {
		return Config{}, errors.New("SANITY_PROJECT_ID and SANITY_DATASET must be defined")
	}

	hooks, err := rebuild.HooksFromConfig(
		v.String("vercel_deploy_hook_url"),
		v.String("netlify_build_hook_url"),
		v.StringSlice("deploy_hook_urls"),
	)
	if err != nil {
		return Config{}, fmt.Errorf("deploy hooks: %w", err)
	}
	cfg.DeployHooks = hooks

	if core != nil {
		cfg.RebuildTimeout = rebuildBudget(cfg.RebuildTimeout, core.HTTP.WriteTimeout)
	}
	return cfg, nil
}

// maxRebuildHeadroom caps the time reserved after the hook fan-out for
// writing the webhook response.
const maxRebuildHeadroom = 5 * time.Second

// rebuildBudget clamps the fan-out so the webhook's 200 is written before
// the server's write timeout closes the connection. Headroom is a quarter
// of the write timeout, at most maxRebuildHeadroom. A zero write timeout
// means none is enforced.
func rebuildBudget(want, writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return want
	}
	return min(want, writeTimeout-min(writeTimeout/4, maxRebuildHeadroom))
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
