package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"dsfuzz/config"
)

type Telemetry interface {
	GetTracer() trace.Tracer
}

type telemetryImpl struct {
	tracer trace.Tracer
}

type TelemetryParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.AppConfig
}

// NewTelemetry wires tracing to an OTLP gRPC collector. The exporter batches
// in the background, so an unreachable collector degrades to dropped spans
// rather than a failed run.
func NewTelemetry(p TelemetryParams) (Telemetry, error) {
	telemetryCtx, cancel := context.WithCancel(context.Background())

	exporter, err := otlptracegrpc.New(telemetryCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			attribute.String("service.name", p.Config.ServiceName),
		)),
	)
	otel.SetTracerProvider(provider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cancel()
			return provider.Shutdown(ctx)
		},
	})

	return &telemetryImpl{tracer: provider.Tracer(p.Config.ServiceName)}, nil
}

func (t *telemetryImpl) GetTracer() trace.Tracer {
	return t.tracer
}
