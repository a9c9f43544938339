package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// TracerName is the instrumentation scope used by the service layer
const TracerName = "dpchat/backend"

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
}

// SetupTracing installs a global tracer provider that writes spans to w
// (stdout when nil). The returned function flushes and stops it.
func SetupTracing(serviceName string, w io.Writer) (func(context.Context) error, error) {
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if w != nil {
		opts = append(opts, stdouttrace.WithWriter(w))
	}
	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize stdouttrace exporter: %w", err)
	}

	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// Outcome labels for persistence counters
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Metrics records persistence endpoint activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	provider      *metric.MeterProvider
	handler       http.Handler
	transcripts   otelmetric.Int64Counter
	feedback      otelmetric.Int64Counter
	cacheLookups  otelmetric.Int64Counter
	storeDuration otelmetric.Float64Histogram
	breakerMoves  otelmetric.Int64Counter
}

// SetupMetrics creates an OpenTelemetry meter provider exported through a
// dedicated Prometheus registry. Handler serves that registry.
func SetupMetrics(serviceName string) (*Metrics, error) {
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exp, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}

	res, err := newResource(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to build metric resource: %w", err)
	}

	mp := metric.NewMeterProvider(metric.WithReader(exp), metric.WithResource(res))
	meter := mp.Meter(TracerName)

	m := &Metrics{
		provider: mp,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}

	if m.transcripts, err = meter.Int64Counter("dpchat.transcripts.saved",
		otelmetric.WithDescription("Transcript save requests by outcome")); err != nil {
		return nil, err
	}
	if m.feedback, err = meter.Int64Counter("dpchat.feedback.saved",
		otelmetric.WithDescription("Feedback save requests by outcome")); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter("dpchat.cache.lookups",
		otelmetric.WithDescription("Transcript read cache lookups by result")); err != nil {
		return nil, err
	}
	if m.storeDuration, err = meter.Float64Histogram("dpchat.store.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("MongoDB operation latency")); err != nil {
		return nil, err
	}

	if m.breakerMoves, err = meter.Int64Counter("dpchat.breaker.transitions",
		otelmetric.WithDescription("Circuit breaker state changes by target state")); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// Shutdown flushes the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// TranscriptSaved counts one transcript save request
func (m *Metrics) TranscriptSaved(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.transcripts.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

// FeedbackSaved counts one feedback save request
func (m *Metrics) FeedbackSaved(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.feedback.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

// CacheLookup counts a read-cache hit or miss
func (m *Metrics) CacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("result", result)))
}

// ObserveStore records the latency of one store operation
func (m *Metrics) ObserveStore(ctx context.Context, op string, start time.Time) {
	if m == nil {
		return
	}
	m.storeDuration.Record(ctx, time.Since(start).Seconds(), otelmetric.WithAttributes(attribute.String("op", op)))
}

// BreakerTransition counts a circuit breaker moving into state to
func (m *Metrics) BreakerTransition(ctx context.Context, breaker, to string) {
	if m == nil {
		return
	}
	m.breakerMoves.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("state", to),
	))
}
