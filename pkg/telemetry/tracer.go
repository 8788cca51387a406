package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// Tracer is the small tracing capability handed to components. When no
// collector is configured it degrades to a no-op.
type Tracer interface {
	Start()
	SetAttributes(attrs ...attribute.KeyValue)
	AddEvent(name string, attrs ...attribute.KeyValue)
	SetError(message string)
	End()
}

// Attribute constructors re-exported so callers don't import otel directly.
func String(key, value string) attribute.KeyValue    { return attribute.String(key, value) }
func Bool(key string, value bool) attribute.KeyValue { return attribute.Bool(key, value) }
func Int(key string, value int) attribute.KeyValue   { return attribute.Int(key, value) }

type TracerFactory struct {
	telemetry Telemetry
}

type TracerFactoryParams struct {
	fx.In

	Telemetry Telemetry `optional:"true"`
}

func NewTracerFactory(p TracerFactoryParams) *TracerFactory {
	return &TracerFactory{telemetry: p.Telemetry}
}

func (t *TracerFactory) NewTracer(ctx context.Context, spanName string) Tracer {
	if t.telemetry == nil || t.telemetry.GetTracer() == nil {
		return &noopTracer{}
	}
	return &spanTracer{
		tracer:   t.telemetry.GetTracer(),
		ctx:      ctx,
		spanName: spanName,
	}
}

type spanTracer struct {
	tracer   trace.Tracer
	ctx      context.Context
	spanName string
	attrs    []attribute.KeyValue

	span    trace.Span
	started bool
}

func (t *spanTracer) Start() {
	t.ctx, t.span = t.tracer.Start(t.ctx, t.spanName, trace.WithAttributes(t.attrs...))
	t.started = true
}

func (t *spanTracer) SetAttributes(attrs ...attribute.KeyValue) {
	t.attrs = append(t.attrs, attrs...)
	if t.started {
		t.span.SetAttributes(attrs...)
	}
}

func (t *spanTracer) AddEvent(name string, attrs ...attribute.KeyValue) {
	if t.started {
		t.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

func (t *spanTracer) SetError(message string) {
	if t.started {
		t.span.SetStatus(codes.Error, message)
	}
}

func (t *spanTracer) End() {
	if t.started {
		t.span.End()
	}
}

// noopTracer is used when telemetry is not enabled.
type noopTracer struct{}

func (t *noopTracer) Start()                                            {}
func (t *noopTracer) SetAttributes(attrs ...attribute.KeyValue)         {}
func (t *noopTracer) AddEvent(name string, attrs ...attribute.KeyValue) {}
func (t *noopTracer) SetError(message string)                           {}
func (t *noopTracer) End()                                              {}
