package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsHostAllowed(t *testing.T) {
	tests := []struct {
		name         string
		host         string
		allowedHosts []string
		want         bool
	}{
		{"empty allowed hosts", "example.com", nil, true},
		{"exact match", "example.com:8080", []string{"example.com:8080"}, true},
		{"host without port", "example.com", []string{"example.com:8080"}, true},
		{"allowed without port", "example.com:8080", []string{"example.com"}, true},
		{"port mismatch", "example.com:9090", []string{"example.com:8080"}, false},
		{"ipv6 with port", "[::1]:8080", []string{"[::1]:8080"}, true},
		{"ipv6 bare", "::1", []string{"[::1]:8080"}, true},
		{"ipv6 allowed bare", "[::1]:8080", []string{"::1"}, true},
		{"case insensitive", "Example.COM:8080", []string{"example.com"}, true},
		{"whitespace", "  example.com:8080  ", []string{"  example.com  "}, true},
		{"second in list", "api.example.com", []string{"example.com", "api.example.com"}, true},
		{"no match", "evil.com", []string{"example.com"}, false},
		{"subdomain mismatch", "sub.example.com", []string{"example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHostAllowed(tt.host, tt.allowedHosts); got != tt.want {
				t.Errorf("IsHostAllowed(%q, %v) = %v, want %v", tt.host, tt.allowedHosts, got, tt.want)
			}
		})
	}
}

func TestHSTSAndNoStore(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rr := httptest.NewRecorder()

	HSTS(NoStore(next)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("missing Strict-Transport-Security header")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", rr.Header().Get("Cache-Control"))
	}
}
