// Package sanity reads site content from the Sanity query API.
//
// Published reads go through the API CDN and are cached; preview reads go to
// the live API with a token and the previewDrafts perspective so editors see
// unpublished drafts. Transient failures are retried, guarded by a circuit
// breaker, and surfaced as ErrUnavailable so pages can degrade.
package sanity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markeidelman/clinicweb/metrics"
	"github.com/markeidelman/clinicweb/pantry/cache"
	"github.com/markeidelman/clinicweb/pantry/retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultAPIVersion = "2024-01-01"

	perspectivePublished = "published"
	perspectivePreview   = "previewDrafts"

	// maxResponseBytes bounds a single query result.
	maxResponseBytes = 8 << 20
)

// Config configures a Client.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string // default DefaultAPIVersion

	// Token authorizes preview reads. Never sent on published reads.
	Token string

	HTTPClient *http.Client
	Timeout    time.Duration // per attempt, default 10s

	Retry retry.Config

	// Cache holds published results for CacheTTL. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	// BreakerFailures consecutive recoverable failures open the circuit
	// for BreakerCooldown. Defaults: 5 and 30s.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// CDNBaseURL and APIBaseURL override the hosts derived from ProjectID.
	CDNBaseURL string
	APIBaseURL string

	Logger *zap.Logger
}

// Client runs GROQ queries. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Dataset == "" {
		return nil, errors.New("sanity: project id and dataset are required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	cfg.APIVersion = strings.TrimPrefix(cfg.APIVersion, "v")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Config{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Jitter:       0.2,
		}
	}
	// An open circuit fails fast; waiting out the backoff would not close it.
	cfg.Retry.RetryIf = func(err error) bool {
		return IsRecoverable(err) && !errors.Is(err, gobreaker.ErrOpenState)
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if cfg.CDNBaseURL == "" {
		cfg.CDNBaseURL = "https://" + cfg.ProjectID + ".apicdn.sanity.io"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://" + cfg.ProjectID + ".api.sanity.io"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Client{
		cfg:    cfg,
		http:   cfg.HTTPClient,
		logger: cfg.Logger.With(zap.String("component", "sanity")),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sanity",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Client errors and canceled requests say nothing about CMS health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRecoverable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c, nil
}

// BreakerState returns "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Check reports an error while the circuit is open. Used by /health.
func (c *Client) Check(ctx context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	return nil
}

// Purge drops every cached published result.
func (c *Client) Purge(ctx context.Context) error {
	if c.cfg.Cache == nil {
		return nil
	}
	return c.cfg.Cache.Clear(ctx)
}

// Fetch runs query with params and returns the raw result. preview selects
// the draft-aware perspective and bypasses the cache.
//
// Recoverable failures are logged at warn and returned wrapped in
// ErrUnavailable. Others are logged at error and returned as is.
func (c *Client) Fetch(ctx context.Context, query string, params map[string]any, preview bool) (json.RawMessage, error) {
	perspective := perspectivePublished
	if preview {
		perspective = perspectivePreview
	}
	start := time.Now()

	var key string
	if !preview && c.cfg.Cache != nil {
		key = cacheKey(query, params)
		if data, err := c.cfg.Cache.Get(ctx, key); err == nil {
			metrics.ObserveCMSFetch(perspective, "cached", time.Since(start))
			return data, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
	}

	data, err := retry.DoWithResult(ctx, c.cfg.Retry, func(ctx context.Context) (json.RawMessage, error) {
		out, err := c.breaker.Execute(func() (any, error) {
			return c.do(ctx, query, params, preview)
		})
		if err != nil {
			return nil, err
		}
		return out.(json.RawMessage), nil
	})
	if errors.Is(err, context.Canceled) {
		metrics.ObserveCMSFetch(perspective, "canceled", time.Since(start))
		c.logger.Debug("fetch canceled", zap.String("query", truncate(query, 200)))
		return nil, err
	}
	if err != nil {
		fields := []zap.Field{
			zap.String("query", truncate(query, 200)),
			zap.Any("params", params),
			zap.Bool("preview", preview),
			zap.Error(err),
		}
		if IsRecoverable(err) {
			metrics.ObserveCMSFetch(perspective, "unavailable", time.Since(start))
			c.logger.Warn("recoverable fetch error", fields...)
			if errors.Is(err, ErrUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		metrics.ObserveCMSFetch(perspective, "error", time.Since(start))
		c.logger.Error("fetch failed", fields...)
		return nil, err
	}
	metrics.ObserveCMSFetch(perspective, "ok", time.Since(start))

	if key != "" {
		if err := c.cfg.Cache.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
			c.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return data, nil
}

// FetchInto runs Fetch and decodes the result into T. A null result yields
// the zero T.
func FetchInto[T any](ctx context.Context, c *Client, query string, params map[string]any, preview bool) (T, error) {
	var out T
	data, err := c.Fetch(ctx, query, params, preview)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("sanity: decode result: %w", err)
	}
	return out, nil
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error struct {
		Description string `json:"description"`
	} `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, query string, params map[string]any, preview bool) (json.RawMessage, error) {
	u, err := c.queryURL(query, params, preview)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("sanity: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if preview && c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sanity: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("sanity: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			apiErr.Description = er.Error.Description
			if apiErr.Description == "" {
				apiErr.Description = er.Message
			}
		}
		return nil, apiErr
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("sanity: decode response: %w", err)
	}
	if len(qr.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return qr.Result, nil
}

// queryURL builds /v{version}/data/query/{dataset}?query=...&$name=<json>.
func (c *Client) queryURL(query string, params map[string]any, preview bool) (string, error) {
	base := c.cfg.CDNBaseURL
	if preview {
		base = c.cfg.APIBaseURL
	}

	v := url.Values{}
	v.Set("query", query)
	for name, val := range params {
		enc, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("sanity: encode param %q: %w", name, err)
		}
		v.Set("$"+name, string(enc))
	}
	if preview {
		v.Set("perspective", perspectivePreview)
	}
	return fmt.Sprintf("%s/v%s/data/query/%s?%s",
		strings.TrimRight(base, "/"), c.cfg.APIVersion, url.PathEscape(c.cfg.Dataset), v.Encode()), nil
}

// cacheKey is stable for equal query and params; json.Marshal sorts map keys.
func cacheKey(query string, params map[string]any) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	if len(params) > 0 {
		enc, _ := json.Marshal(params)
		h.Write(enc)
	}
	return "q:" + hex.EncodeToString(h.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
