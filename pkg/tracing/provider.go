package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/harmonia-app/harmonia/pkg/tracing/exporters"
)

// ProviderConfig controls which span exporter backs the global tracer.
type ProviderConfig struct {
	ServiceName string
	Enabled     bool
	OTLP        exporters.OTLPConfig
}

// InitProvider installs a global tracer provider and returns its shutdown
// function. When tracing is disabled spans are dropped by a no-op exporter.
func InitProvider(ctx context.Context, config ProviderConfig) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if config.Enabled {
		otlpExporter, err := exporters.NewOTLPExporter(ctx, config.OTLP)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = otlpExporter
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
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
	SetTracer(provider.Tracer(config.ServiceName))

	return provider.Shutdown, nil
}
