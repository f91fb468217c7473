// config/appconfig.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppKey defines a configuration key owned by the site rather than the
// server core. Keys are loaded from config files, environment variables and
// command-line flags with the same precedence as CoreConfig.
type AppKey struct {
	// Name is the key name (e.g., "sanity_dataset").
	// Used as-is for config files and CLI flags; upper-cased for env vars.
	Name string

	// Default is the default value if not set elsewhere.
	// Supported types: string, int, int64, bool, []string.
	Default any

	// Desc is a short description for --help output.
	Desc string

	// Secret marks values that must never be logged.
	Secret bool
}

// AppConfigValues holds the loaded app configuration values keyed by AppKey.Name.
type AppConfigValues map[string]any

// String returns a trimmed string value or empty string if not found/wrong type.
func (a AppConfigValues) String(key string) string {
	if v, ok := a[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Int returns an int value or 0 if not found/wrong type.
// Handles int and int64 (TOML/Viper returns int64 for integers) and the
// strings environment variables arrive as.
func (a AppConfigValues) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

// Bool returns a bool value or false if not found/wrong type.
func (a AppConfigValues) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// StringSlice returns a []string value or nil if not found/wrong type.
func (a AppConfigValues) StringSlice(key string) []string {
	if v, ok := a[key].([]string); ok {
		return v
	}
	return nil
}

// Duration parses a duration value ("10m", "90s", or numeric seconds).
// Returns def if the key is missing, empty, or invalid.
func (a AppConfigValues) Duration(key string, def time.Duration) time.Duration {
	raw := a[key]
	if raw == nil {
		return def
	}
	dur, err := parseDurationFlexible(raw, def)
	if err != nil {
		return def
	}
	return dur
}

// loadAppConfig loads app keys with precedence flags > env > config files > defaults.
// An empty envPrefix maps key "sanity_token" to env var SANITY_TOKEN.
func loadAppConfig(logger *zap.Logger, v *viper.Viper, envPrefix string, keys []AppKey) (AppConfigValues, error) {
	if len(keys) == 0 {
		return make(AppConfigValues), nil
	}

	appV := viper.New()
	if envPrefix != "" {
		appV.SetEnvPrefix(envPrefix)
	}
	appV.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	appV.AutomaticEnv()

	for _, key := range keys {
		appV.SetDefault(key.Name, key.Default)
		_ = appV.BindEnv(key.Name)

		// config files were merged into the core viper instance
		if v.IsSet(key.Name) {
			appV.Set(key.Name, v.Get(key.Name))
		}
		if f := pflag.Lookup(key.Name); f != nil && f.Changed {
			_ = appV.BindPFlag(key.Name, f)
		}
	}

	result := make(AppConfigValues, len(keys))
	for _, key := range keys {
		val := appV.Get(key.Name)
		if _, isList := key.Default.([]string); isList {
			arr, err := toStringSlice(val)
			if err != nil {
				return nil, fmt.Errorf("config key %q: %w", key.Name, err)
			}
			val = arr
		}
		result[key.Name] = val
	}

	if logger != nil {
		fields := make([]zap.Field, 0, len(keys))
		for _, key := range keys {
			if key.Secret || looksSecret(key.Name) {
				fields = append(fields, zap.Bool(key.Name+"_set", result.String(key.Name) != ""))
				continue
			}
			fields = append(fields, zap.Any(key.Name, result[key.Name]))
		}
		logger.Info("app config loaded", fields...)
	}

	return result, nil
}

func looksSecret(name string) bool {
	n := strings.ToLower(name)
	for _, s := range []string{"key", "secret", "password", "token"} {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

// registerAppFlags registers command-line flags for app config keys.
// Must be called before pflag.Parse().
func registerAppFlags(keys []AppKey) error {
	for _, key := range keys {
		if pflag.Lookup(key.Name) != nil {
			return fmt.Errorf("config key %q conflicts with existing flag", key.Name)
		}

		switch d := key.Default.(type) {
		case string:
			pflag.String(key.Name, d, key.Desc)
		case int:
			pflag.Int(key.Name, d, key.Desc)
		case int64:
			pflag.Int64(key.Name, d, key.Desc)
		case bool:
			pflag.Bool(key.Name, d, key.Desc)
		case []string:
			pflag.String(key.Name, "", key.Desc+" (JSON array)")
		default:
			return fmt.Errorf("config key %q has unsupported default type %T", key.Name, key.Default)
		}
	}
	return nil
}
