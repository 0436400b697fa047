package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"legal-rag-functions/internal/common/config"
)

type Observability struct {
	serviceName    string
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	recordCounter  otelmetric.Int64Counter
	chatCounter    otelmetric.Int64Counter
	invokeDuration otelmetric.Float64Histogram
}

// New registers an OpenTelemetry meter exported through the Prometheus default
// registry and, when tracing is enabled, the global tracer provider.
func New(serviceName string, tracing config.TracingConfig) *Observability {
	o := &Observability{serviceName: serviceName}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
	} else {
		provider := metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(provider)
		o = newWithProvider(serviceName, provider)
	}

	tp, err := newTracerProvider(context.Background(), serviceName, tracing)
	if err != nil {
		log.Printf("Failed to create tracer provider: %v", err)
		return o
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
	}
	o.tracerProvider = tp
	return o
}

// NewWithTracerProvider returns an Observability whose spans go to tp and
// whose metric recorders are no-ops.
func NewWithTracerProvider(serviceName string, tp *sdktrace.TracerProvider) *Observability {
	return &Observability{serviceName: serviceName, tracerProvider: tp}
}

func newWithProvider(serviceName string, provider *metric.MeterProvider) *Observability {
	meter := provider.Meter(serviceName)

	recordCounter, _ := meter.Int64Counter(
		"records.processed",
		otelmetric.WithDescription("Number of skill records processed"),
	)

	chatCounter, _ := meter.Int64Counter(
		"chat.calls",
		otelmetric.WithDescription("Number of chat completion calls"),
	)

	invokeDuration, _ := meter.Float64Histogram(
		"invocations.duration",
		otelmetric.WithDescription("Function invocation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		serviceName:    serviceName,
		meterProvider:  provider,
		meter:          meter,
		recordCounter:  recordCounter,
		chatCounter:    chatCounter,
		invokeDuration: invokeDuration,
	}
}

// Tracer returns the service tracer, falling back to the global provider.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil {
		return otel.Tracer("legal-rag-functions")
	}
	if o.tracerProvider != nil {
		return o.tracerProvider.Tracer(o.serviceName)
	}
	return otel.Tracer(o.serviceName)
}

func (o *Observability) RecordRecordProcessed(ctx context.Context, outcome string) {
	if o != nil && o.recordCounter != nil {
		o.recordCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordChatCall(ctx context.Context, phase string) {
	if o != nil && o.chatCounter != nil {
		o.chatCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("phase", phase),
		))
	}
}

func (o *Observability) RecordInvocationDuration(ctx context.Context, function string, duration time.Duration, status int) {
	if o != nil && o.invokeDuration != nil {
		o.invokeDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("function", function),
			attribute.Int("status", status),
		))
	}
}

// Shutdown flushes pending spans and stops both providers.
func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
