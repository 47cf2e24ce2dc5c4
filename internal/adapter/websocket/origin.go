package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a websocket.
type originPolicy struct {
	trusted       map[string]struct{}
	allowLoopback bool
}

func newOriginPolicy(appURL string, extra []string, allowLoopback bool) originPolicy {
	p := originPolicy{trusted: make(map[string]struct{}), allowLoopback: allowLoopback}
	for _, raw := range append([]string{appURL}, extra...) {
		if o := extractOrigin(strings.TrimSpace(raw)); o != "" {
			p.trusted[o] = struct{}{}
		}
	}
	return p
}

// allows reports whether origin may connect. A missing Origin header means a
// non-browser client and is accepted.
func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.trusted[strings.ToLower(origin)]; ok {
		return true
	}
	return p.allowLoopback && isLoopbackOrigin(origin)
}

// NewCheckOrigin builds the origin check for the websocket upgrade. The app's
// own origin and every entry of allowed are trusted; loopback origins are
// trusted too in development.
func NewCheckOrigin(appURL string, allowed []string, isDevelopment bool) func(r *http.Request) bool {
	p := newOriginPolicy(appURL, allowed, isDevelopment)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if p.allows(origin) {
			return true
		}
		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

// extractOrigin reduces a URL to its lowercase scheme://host[:port].
func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
