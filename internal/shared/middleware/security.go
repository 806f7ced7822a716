package middleware

import (
	"net"
	"net/http"
	"strings"
)

// HSTS adds Strict-Transport-Security when the server terminates TLS itself.
func HSTS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// NoStore marks API responses as uncacheable; they carry balances and
// account details.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// IsHostAllowed reports whether host (optionally with port) matches one of
// allowedHosts. Ports are ignored when either side omits them. An empty
// list allows everything.
func IsHostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}

	h, port := splitHost(host)
	for _, allowed := range allowedHosts {
		ah, aport := splitHost(allowed)
		if h != ah {
			continue
		}
		if port == "" || aport == "" || port == aport {
			return true
		}
	}
	return false
}

// splitHost lower-cases and separates hostname and port, accepting bare
// IPv6 literals with or without brackets.
func splitHost(s string) (string, string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if h, p, err := net.SplitHostPort(s); err == nil {
		return h, p
	}
	return strings.Trim(s, "[]"), ""
}
