// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the environment variable prefix for core keys
// (e.g. CLINICWEB_HTTP_PORT).
const EnvPrefix = "CLINICWEB"

// HTTPConfig groups HTTP/HTTPS port, protocol and server timeout settings.
type HTTPConfig struct {
	HTTPPort  int  `mapstructure:"http_port"`
	HTTPSPort int  `mapstructure:"https_port"`
	UseHTTPS  bool `mapstructure:"use_https"`

	ReadTimeout       time.Duration `mapstructure:"-"`
	ReadHeaderTimeout time.Duration `mapstructure:"-"`
	WriteTimeout      time.Duration `mapstructure:"-"`
	IdleTimeout       time.Duration `mapstructure:"-"`
	ShutdownTimeout   time.Duration `mapstructure:"-"`
}

// TLSConfig groups manual certificate and Let's Encrypt (http-01) settings.
type TLSConfig struct {
	CertFile            string `mapstructure:"cert_file"`
	KeyFile             string `mapstructure:"key_file"`
	UseLetsEncrypt      bool   `mapstructure:"use_lets_encrypt"`
	LetsEncryptEmail    string `mapstructure:"lets_encrypt_email"`
	LetsEncryptCacheDir string `mapstructure:"lets_encrypt_cache_dir"`
	Domain              string `mapstructure:"domain"`
}

// CORSConfig groups all CORS behavior and lists.
type CORSConfig struct {
	EnableCORS           bool     `mapstructure:"enable_cors"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
	CORSExposedHeaders   []string `mapstructure:"cors_exposed_headers"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`
}

// SecurityConfig controls the response security headers.
type SecurityConfig struct {
	EnableSecurityHeaders bool   `mapstructure:"enable_security_headers"`
	XFrameOptions         string `mapstructure:"x_frame_options"`
	ReferrerPolicy        string `mapstructure:"referrer_policy"`
	HSTSMaxAge            int    `mapstructure:"hsts_max_age"`
	ContentSecurityPolicy string `mapstructure:"content_security_policy"`
}

// CoreConfig holds the server-level configuration. Site settings (secrets,
// CMS project, deploy hooks) live in AppConfigValues and are turned into a
// typed struct by the site package.
type CoreConfig struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	HTTP     HTTPConfig     `mapstructure:",squash"`
	TLS      TLSConfig      `mapstructure:",squash"`
	CORS     CORSConfig     `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`

	// Startup timeout for connecting to Redis and probing the CMS.
	BackendConnectTimeout time.Duration `mapstructure:"-"`

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty ignores those headers.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`
	EnableCompression   bool  `mapstructure:"enable_compression"`
	CompressionLevel    int   `mapstructure:"compression_level"`
}

// IsProd reports whether the service runs in the production environment.
func (c CoreConfig) IsProd() bool {
	return c.Env == "prod"
}

// Dump returns a pretty JSON string of the config for debugging.
// CoreConfig carries no secrets; use at debug level only.
func (c CoreConfig) Dump() string {
	b, _ := json.MarshalIndent(c, "", "  ")
	return string(b)
}

// durationKeys lists duration-valued core keys with their defaults.
var durationKeys = []struct {
	name string
	def  time.Duration
	desc string
}{
	{"read_timeout", 15 * time.Second, "HTTP server read timeout"},
	{"read_header_timeout", 10 * time.Second, "HTTP server read-header timeout"},
	{"write_timeout", 30 * time.Second, "HTTP server write timeout; rebuild_timeout is clamped below it"},
	{"idle_timeout", 60 * time.Second, "HTTP server idle timeout"},
	{"shutdown_timeout", 15 * time.Second, "Graceful shutdown window"},
	{"backend_connect_timeout", 10 * time.Second, "Startup timeout for Redis / CMS connections"},
}

// Load merges defaults → config.* file(s) → env vars → explicit flags into one CoreConfig.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
func Load(logger *zap.Logger) (*CoreConfig, error) {
	core, _, err := LoadWithAppConfig(logger, "", nil)
	return core, err
}

// LoadWithAppConfig loads the core config plus app-specific keys.
// App keys use appEnvPrefix for their environment variables; an empty
// prefix maps "sanity_dataset" straight to SANITY_DATASET.
func LoadWithAppConfig(logger *zap.Logger, appEnvPrefix string, appKeys []AppKey) (*CoreConfig, AppConfigValues, error) {
	// 0) Optionally load .env (safe: real env still wins over .env)
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info("Loaded .env file")
	}

	// 1) Define flags (only *explicitly set* flags will override)
	registerCoreFlags()
	if err := registerAppFlags(appKeys); err != nil {
		return nil, nil, err
	}
	pflag.Parse()

	// 2) Viper + env
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	// 3) Optional config.* files
	mergeConfigFiles(logger, v)

	// 4) Defaults (lowest precedence)
	setDefaults(v)

	// 5) Apply *explicit* flags (highest precedence)
	pflag.CommandLine.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	// 6) Normalize list keys (accept JSON strings → []string)
	if err := normalizeListKeys(logger, v,
		"cors_allowed_origins",
		"cors_allowed_methods",
		"cors_allowed_headers",
		"cors_exposed_headers",
		"trusted_proxies",
	); err != nil {
		return nil, nil, err
	}

	// 7) Build struct
	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unable to decode core config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	durs := make(map[string]time.Duration, len(durationKeys))
	for _, dk := range durationKeys {
		d, err := parseDurationFlexible(v.Get(dk.name), dk.def)
		if err != nil && logger != nil {
			logger.Warn("invalid duration; using default",
				zap.String("key", dk.name),
				zap.Any("value", v.Get(dk.name)),
				zap.Duration("default", dk.def),
				zap.Error(err))
		}
		durs[dk.name] = d
	}
	cfg.HTTP.ReadTimeout = durs["read_timeout"]
	cfg.HTTP.ReadHeaderTimeout = durs["read_header_timeout"]
	cfg.HTTP.WriteTimeout = durs["write_timeout"]
	cfg.HTTP.IdleTimeout = durs["idle_timeout"]
	cfg.HTTP.ShutdownTimeout = durs["shutdown_timeout"]
	cfg.BackendConnectTimeout = durs["backend_connect_timeout"]

	// 8) Validate
	if err := validateCoreConfig(cfg); err != nil {
		return nil, nil, err
	}

	appVals, err := loadAppConfig(logger, v, appEnvPrefix, appKeys)
	if err != nil {
		return nil, nil, err
	}
	return &cfg, appVals, nil
}

func registerCoreFlags() {
	if pflag.Lookup("env") != nil {
		return
	}
	pflag.String("env", "dev", `Runtime environment "dev"|"prod"`)
	pflag.String("log_level", "debug", "Log level")

	pflag.Int("http_port", 8080, "HTTP port")
	pflag.Int("https_port", 443, "HTTPS port")
	pflag.Bool("use_https", false, "Serve HTTPS")

	pflag.Bool("use_lets_encrypt", false, "Use Let's Encrypt (http-01)")
	pflag.String("lets_encrypt_email", "", "ACME account e-mail")
	pflag.String("lets_encrypt_cache_dir", "letsencrypt-cache", "ACME cache dir")
	pflag.String("cert_file", "", "TLS cert file (manual TLS)")
	pflag.String("key_file", "", "TLS key file  (manual TLS)")
	pflag.String("domain", "", "Domain for TLS or ACME")

	for _, dk := range durationKeys {
		pflag.String(dk.name, dk.def.String(), dk.desc)
	}

	pflag.Bool("enable_compression", true, "Enable HTTP compression")
	pflag.Int("compression_level", 5, "Compression level 1-9")
	pflag.Bool("enable_cors", false, "Enable CORS")
	pflag.String("cors_allowed_origins", "", `JSON array of origins, e.g. '["https://a.example","https://b.example"]'`)
	pflag.String("cors_allowed_methods", "", `JSON array of methods, e.g. '["GET","POST"]'`)
	pflag.String("cors_allowed_headers", "", `JSON array of headers, e.g. '["Accept","Authorization"]'`)
	pflag.String("cors_exposed_headers", "", `JSON array of headers, e.g. '["Link"]'`)
	pflag.Bool("cors_allow_credentials", false, "CORS: allow credentials")
	pflag.Int("cors_max_age", 0, "CORS: max age seconds (0 disables cache)")

	pflag.Bool("enable_security_headers", true, "Send security response headers")
	pflag.String("x_frame_options", "SAMEORIGIN", "X-Frame-Options header value")
	pflag.String("referrer_policy", "strict-origin-when-cross-origin", "Referrer-Policy header value")
	pflag.Int("hsts_max_age", 31536000, "HSTS max-age seconds (HTTPS only, 0 disables)")
	pflag.String("content_security_policy", "", "Content-Security-Policy header value")

	pflag.String("trusted_proxies", "", `JSON array of proxy IPs/CIDRs allowed to set X-Forwarded-For, e.g. '["10.0.0.0/8"]'`)
	pflag.Int64("max_request_body_bytes", 1<<20, "Max HTTP request body size in bytes (0 = unlimited)")
}

func mergeConfigFiles(logger *zap.Logger, v *viper.Viper) {
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := "config." + ext
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			if logger != nil {
				logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			if logger != nil {
				logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			}
			continue
		}
		if logger != nil {
			logger.Info("Loaded config file", zap.String("file", file))
		}
	}
}

func allKeys() []string {
	keys := []string{
		"env", "log_level",
		"http_port", "https_port", "use_https",
		"use_lets_encrypt", "lets_encrypt_email", "lets_encrypt_cache_dir",
		"cert_file", "key_file", "domain",
		"enable_compression", "compression_level",
		"enable_cors",
		"cors_allowed_origins", "cors_allowed_methods", "cors_allowed_headers",
		"cors_exposed_headers", "cors_allow_credentials", "cors_max_age",
		"enable_security_headers", "x_frame_options", "referrer_policy",
		"hsts_max_age", "content_security_policy",
		"trusted_proxies",
		"max_request_body_bytes",
	}
	for _, dk := range durationKeys {
		keys = append(keys, dk.name)
	}
	return keys
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "debug")

	v.SetDefault("http_port", 8080)
	v.SetDefault("https_port", 443)
	v.SetDefault("use_https", false)

	v.SetDefault("use_lets_encrypt", false)
	v.SetDefault("lets_encrypt_email", "")
	v.SetDefault("lets_encrypt_cache_dir", "letsencrypt-cache")
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")
	v.SetDefault("domain", "")

	for _, dk := range durationKeys {
		v.SetDefault(dk.name, dk.def.String())
	}

	v.SetDefault("enable_compression", true)
	v.SetDefault("compression_level", 5)

	v.SetDefault("enable_cors", false)
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("cors_allowed_methods", []string{})
	v.SetDefault("cors_allowed_headers", []string{})
	v.SetDefault("cors_exposed_headers", []string{})
	v.SetDefault("cors_allow_credentials", false)
	v.SetDefault("cors_max_age", 0)

	v.SetDefault("enable_security_headers", true)
	v.SetDefault("x_frame_options", "SAMEORIGIN")
	v.SetDefault("referrer_policy", "strict-origin-when-cross-origin")
	v.SetDefault("hsts_max_age", 31536000)
	v.SetDefault("content_security_policy", "")

	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("max_request_body_bytes", int64(1<<20))
}

// normalizeListKeys coerces JSON-string values into []string for the given keys.
func normalizeListKeys(logger *zap.Logger, v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		arr, err := toStringSlice(v.Get(key))
		if err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
		if arr == nil {
			if val := v.Get(key); val != nil && logger != nil {
				if _, ok := val.(string); !ok {
					logger.Warn("unexpected type for list key; expected JSON array/string",
						zap.String("key", key), zap.Any("value", val))
				}
			}
			continue
		}
		v.Set(key, arr)
	}
	return nil
}

// toStringSlice accepts a JSON array string, []interface{} or []string.
// It returns (nil, nil) for empty strings and unsupported types.
func toStringSlice(val any) ([]string, error) {
	switch t := val.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		var arr []string
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, fmt.Errorf("expects a JSON array string, got %q: %w", s, err)
		}
		return arr, nil
	case []interface{}:
		arr := make([]string, 0, len(t))
		for _, e := range t {
			arr = append(arr, fmt.Sprint(e))
		}
		return arr, nil
	case []string:
		return t, nil
	}
	return nil, nil
}

func validateCoreConfig(cfg CoreConfig) error {
	var missing []string
	var invalid []string

	if cfg.Env != "dev" && cfg.Env != "prod" {
		invalid = append(invalid, `env must be "dev" or "prod"`)
	}

	// TLS / ACME consistency
	if cfg.TLS.UseLetsEncrypt && !cfg.HTTP.UseHTTPS {
		invalid = append(invalid, "use_lets_encrypt=true requires use_https=true")
	}
	if cfg.TLS.UseLetsEncrypt && (strings.TrimSpace(cfg.TLS.CertFile) != "" || strings.TrimSpace(cfg.TLS.KeyFile) != "") {
		invalid = append(invalid, "use_lets_encrypt=true cannot be combined with cert_file/key_file")
	}
	if cfg.TLS.UseLetsEncrypt {
		if strings.TrimSpace(cfg.TLS.Domain) == "" {
			missing = append(missing, "CLINICWEB_DOMAIN (or --domain) for Let's Encrypt")
		}
		if s := strings.TrimSpace(cfg.TLS.LetsEncryptEmail); s == "" {
			missing = append(missing, "CLINICWEB_LETS_ENCRYPT_EMAIL (or --lets_encrypt_email)")
		} else if !strings.Contains(s, "@") {
			invalid = append(invalid, "lets_encrypt_email must look like an email address")
		}
	}
	if cfg.HTTP.UseHTTPS && !cfg.TLS.UseLetsEncrypt {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			missing = append(missing, "CLINICWEB_CERT_FILE and CLINICWEB_KEY_FILE (or --cert_file/--key_file) for manual TLS")
		}
	}

	// Port sanity
	if cfg.HTTP.HTTPPort <= 0 || cfg.HTTP.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if cfg.HTTP.HTTPSPort <= 0 || cfg.HTTP.HTTPSPort > 65535 {
		invalid = append(invalid, "https_port must be in 1..65535")
	}
	if cfg.HTTP.UseHTTPS && cfg.HTTP.HTTPPort == cfg.HTTP.HTTPSPort {
		invalid = append(invalid, "http_port and https_port cannot be equal when use_https=true")
	}

	// CORS sanity
	if cfg.CORS.EnableCORS {
		if len(cfg.CORS.CORSAllowedOrigins) == 0 {
			missing = append(missing, "CORS: cors_allowed_origins (JSON array) required when enable_cors=true")
		}
		if len(cfg.CORS.CORSAllowedMethods) == 0 {
			missing = append(missing, "CORS: cors_allowed_methods (JSON array) required when enable_cors=true")
		}
		for _, o := range cfg.CORS.CORSAllowedOrigins {
			if o == "*" && cfg.CORS.CORSAllowCredentials {
				invalid = append(invalid, `CORS: cannot use "*" in cors_allowed_origins when cors_allow_credentials=true`)
				break
			}
		}
		if cfg.CORS.CORSMaxAge < 0 {
			invalid = append(invalid, "CORS: cors_max_age must be >= 0")
		}
	}

	if cfg.EnableCompression && (cfg.CompressionLevel < 1 || cfg.CompressionLevel > 9) {
		invalid = append(invalid, "compression_level must be in 1..9")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		invalid = append(invalid, "hsts_max_age must be >= 0")
	}
	if cfg.MaxRequestBodyBytes < 0 {
		invalid = append(invalid, "max_request_body_bytes must be >= 0")
	}
	if _, err := ParseTrustedProxies(cfg.TrustedProxies); err != nil {
		invalid = append(invalid, err.Error())
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("core configuration errors: %s", strings.Join(parts, " | "))
}

// ParseTrustedProxies turns IP and CIDR entries into prefixes. A bare IP is
// a single-address prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted_proxies: %q is not a CIDR", e)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies: %q is not an IP address", e)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
