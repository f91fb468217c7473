// ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/markeidelman/clinicweb/httputil"
	"golang.org/x/time/rate"
)

// KeyLimiter keeps one token bucket per key (typically a client IP).
// Keys idle for longer than ttl are forgotten.
type KeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyLimiter allows perSecond requests per key with bursts of burst.
func NewKeyLimiter(perSecond float64, burst int, ttl time.Duration) *KeyLimiter {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &KeyLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (kl *KeyLimiter) Allow(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	e, ok := kl.limiters[key]
	if !ok {
		kl.sweep(now)
		e = &entry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweep drops idle keys. Runs only when a new key arrives, so the map
// cannot grow without bound and no goroutine is needed.
func (kl *KeyLimiter) sweep(now time.Time) {
	for k, e := range kl.limiters {
		if now.Sub(e.lastSeen) > kl.ttl {
			delete(kl.limiters, k)
		}
	}
}

// Size returns the number of tracked keys.
func (kl *KeyLimiter) Size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// ClientIP keys on r.RemoteAddr without its port. Behind a proxy, put a
// RealIP middleware that only believes trusted proxies in front; one that
// trusts X-Forwarded-For from anyone lets a client pick its own key.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Config configures Middleware.
type Config struct {
	PerSecond float64
	Burst     int
	TTL       time.Duration // default 1h

	// KeyFunc defaults to ClientIP.
	KeyFunc func(r *http.Request) string

	// OnLimited is called before the 429 is written.
	OnLimited func(r *http.Request, key string)
}

// Middleware answers 429 {"error":"Too many requests"} once a key runs out
// of tokens.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	limiter := NewKeyLimiter(cfg.PerSecond, cfg.Burst, cfg.TTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			if !limiter.Allow(key) {
				if cfg.OnLimited != nil {
					cfg.OnLimited(r, key)
				}
				w.Header().Set("Retry-After", "1")
				httputil.JSONErrorSimple(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
