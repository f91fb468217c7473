// middleware/realip.go
package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/markeidelman/clinicweb/config"
)

// RealIPFromConfig applies RealIP with the configured trusted proxies.
// Entries were validated when the config was loaded.
func RealIPFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	var entries []string
	if coreCfg != nil {
		entries = coreCfg.TrustedProxies
	}
	trusted, _ := config.ParseTrustedProxies(entries)
	return RealIP(trusted)
}

// RealIP sets r.RemoteAddr to the client address reported by a trusted
// proxy. Forwarding headers are read only when the connection's peer is in
// trusted; X-Forwarded-For is walked from the right and the first hop that
// is not itself a trusted proxy wins, falling back to X-Real-IP. Requests
// from anyone else keep their socket address, so a client cannot choose
// the address that rate limits key on. With no trusted proxies RealIP is
// a no-op.
func RealIP(trusted []netip.Prefix) func(next http.Handler) http.Handler {
	if len(trusted) == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	isTrusted := func(a netip.Addr) bool {
		for _, p := range trusted {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer, ok := parseAddr(r.RemoteAddr); ok && isTrusted(peer) {
				if ip, ok := forwardedClient(r.Header, isTrusted); ok {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(h http.Header, isTrusted func(netip.Addr) bool) (netip.Addr, bool) {
	hops := strings.Split(strings.Join(h.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		a, ok := parseAddr(hop)
		if !ok {
			return netip.Addr{}, false
		}
		if !isTrusted(a) {
			return a, true
		}
	}
	return parseAddr(strings.TrimSpace(h.Get("X-Real-IP")))
}

// parseAddr accepts "ip" or "ip:port".
func parseAddr(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
