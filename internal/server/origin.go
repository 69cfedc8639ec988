package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy is the compiled form of Config.AllowedOrigins.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// newOriginPolicy normalizes the configured origins. "*" allows any
// well-formed origin; malformed entries are skipped with a warning. The
// normalized list is returned for storing back into the config.
func newOriginPolicy(origins []string) (originPolicy, []string) {
	policy := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	normalized := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
			continue
		case trimmed == "*":
			policy.allowAll = true
			continue
		}

		canonical, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		if _, dup := policy.allowed[canonical]; dup {
			continue
		}
		policy.allowed[canonical] = struct{}{}
		normalized = append(normalized, canonical)
	}

	return policy, normalized
}

// allows reports whether the Origin header value is permitted.
func (p originPolicy) allows(origin string) bool {
	canonical, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok = p.allowed[canonical]
	return ok
}

// normalizeOrigin reduces an origin to lower-case scheme://host[:port],
// dropping the port when it is the scheme's default.
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", false
	}

	port := parsed.Port()
	if port == "" || defaultPorts[scheme] == port {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		return scheme + "://" + host, true
	}
	return scheme + "://" + net.JoinHostPort(host, port), true
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

func isOriginAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	configMu.RLock()
	policy := activeOrigins
	configMu.RUnlock()

	return policy.allows(origin)
}

// checkOrigin is the upgrader's CheckOrigin hook. Refused handshakes get 403.
func checkOrigin(r *http.Request) bool {
	if isOriginAllowed(r) {
		return true
	}

	slog.Warn("blocked websocket connection from disallowed origin",
		"origin", r.Header.Get("Origin"),
		"addr", r.RemoteAddr)
	return false
}
