package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"finhealth/internal/shared/logger"
)

func TestResponseWriter_Status(t *testing.T) {
	rec := wrapResponseWriter(httptest.NewRecorder())
	if rec.Status() != 0 {
		t.Fatalf("Status() before write = %d, want 0", rec.Status())
	}

	rec.WriteHeader(http.StatusConflict)
	rec.WriteHeader(http.StatusOK)
	if rec.Status() != http.StatusConflict {
		t.Errorf("Status() = %d, want first code %d", rec.Status(), http.StatusConflict)
	}
}

func TestLogging_PassesStatusThrough(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{"explicit", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }, http.StatusCreated},
		{"implicit", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Logging(zerolog.Nop())(tt.handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestLogging_GeneratesRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get("X-Request-ID")
	})

	rr := httptest.NewRecorder()
	Logging(zerolog.Nop())(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("request id = %q, response header = %q", seen, rr.Header().Get("X-Request-ID"))
	}
}

func TestLogging_RequestLogger(t *testing.T) {
	var buf bytes.Buffer

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/score", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rr := httptest.NewRecorder()
	Logging(zerolog.New(&buf))(next).ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") != "req-7" {
		t.Errorf("X-Request-ID = %q, want req-7", rr.Header().Get("X-Request-ID"))
	}
	out := buf.String()
	if strings.Count(out, `"request_id":"req-7"`) != 2 {
		t.Errorf("expected handler and access lines tagged with request id, got %q", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("expected 5xx access line at error level, got %q", out)
	}
}

func TestTracing_UsesRoutePattern(t *testing.T) {
	var pattern string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		pattern = r.Pattern
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	Tracing(mux).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions/9b2f", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if pattern != "GET /api/transactions/{id}" {
		t.Errorf("pattern = %q", pattern)
	}
}
