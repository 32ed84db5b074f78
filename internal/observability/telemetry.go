// Copyright (c) Microsoft. All rights reserved.

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnvOTLPEndpoint enables trace export when set.
const EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

// TelemetryConfig holds the configuration for OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
	Version     string
}

// TelemetryConfigFromEnv enables tracing when OTEL_EXPORTER_OTLP_ENDPOINT is
// set. The exporter reads the endpoint and headers from the standard OTEL_*
// variables itself.
func TelemetryConfigFromEnv(lookup func(string) (string, bool), service string) *TelemetryConfig {
	endpoint, _ := lookup(EnvOTLPEndpoint)
	return &TelemetryConfig{
		Enabled:     endpoint != "",
		ServiceName: service,
	}
}

// TelemetryShutdown flushes and shuts down the telemetry pipeline.
type TelemetryShutdown func(ctx context.Context) error

// SetupTelemetry installs a global OTLP/HTTP tracer provider. When disabled
// it returns a noop shutdown and leaves the global provider untouched.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	origTP := otel.GetTracerProvider()
	origPropagator := otel.GetTextMapPropagator()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("merge otel resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	if err != nil {
		return noopShutdown, fmt.Errorf("create otel exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(shutdownCtx context.Context) error {
		err := provider.Shutdown(shutdownCtx)

		otel.SetTracerProvider(origTP)
		otel.SetTextMapPropagator(origPropagator)

		if err != nil {
			return fmt.Errorf("shutdown otel provider: %w", err)
		}
		return nil
	}, nil
}

func noopShutdown(context.Context) error { return nil }
