// Package telemetry installs the global OpenTelemetry providers used by the
// traced database wrapper, the HTTP middleware, the aggregator client and the
// worker pool.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	ServiceName string
	Environment string
	// OTLPEndpoint empty disables span export.
	OTLPEndpoint string
	// MetricsPort empty disables the /metrics listener.
	MetricsPort string
}

type shutdownFunc func(context.Context) error

// Init installs the meter and tracer providers. The returned shutdown
// flushes pending spans and stops the metrics listener.
func Init(ctx context.Context, cfg Config, log zerolog.Logger) (shutdown func(context.Context) error, err error) {
	var stops []shutdownFunc
	shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i](ctx))
		}
		return errors.Join(errs...)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return shutdown, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	mp, err := newMeterProvider(res)
	if err != nil {
		return shutdown, err
	}
	otel.SetMeterProvider(mp)
	stops = append(stops, mp.Shutdown)

	if cfg.OTLPEndpoint != "" {
		tp, err := newTracerProvider(ctx, res, cfg.OTLPEndpoint)
		if err != nil {
			return shutdown, err
		}
		otel.SetTracerProvider(tp)
		stops = append(stops, tp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.MetricsPort != "" {
		srv := serveMetrics(cfg.MetricsPort, log)
		stops = append(stops, srv.Shutdown)
	}

	log.Info().
		Str("service", cfg.ServiceName).
		Str("metrics_port", cfg.MetricsPort).
		Bool("tracing", cfg.OTLPEndpoint != "").
		Msg("Telemetry initialized")
	return shutdown, nil
}

func newMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, endpoint string) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
	), nil
}

func serveMetrics(port string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("port", port).Msg("Metrics listener stopped")
		}
	}()
	return srv
}
