package middleware

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	httpTracer = otel.Tracer("finhealth/http")
	httpMeter  = otel.Meter("finhealth/http")

	requestSeconds, _ = httpMeter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	requestCount, _ = httpMeter.Int64Counter("http.server.request.total",
		metric.WithDescription("Total HTTP requests"),
	)
)

// Tracing must wrap the ServeMux directly: the span is renamed to the matched
// route pattern after the mux has routed the request, so metric labels never
// carry ids from the path.
func Tracing(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := httpTracer.Start(r.Context(), r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.method", r.Method)),
		)
		defer span.End()

		rec := wrapResponseWriter(w)
		routed := r.WithContext(ctx)
		mux.ServeHTTP(rec, routed)

		route := routed.Pattern
		if route == "" {
			route = r.Method + " unmatched"
		}
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		span.SetName(route)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		recordRequest(ctx, r.Method, route, status, time.Since(start))
	})
}

func recordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	requestSeconds.Record(ctx, elapsed.Seconds(), attrs)
	requestCount.Add(ctx, 1, attrs)
}
