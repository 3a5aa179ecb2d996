package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// ClueLogger wraps goa.design/clue/log for runtime logging.
	ClueLogger struct{}

	// ClueMetrics wraps OTEL metrics for runtime instrumentation.
	ClueMetrics struct {
		meter metric.Meter

		calls    metric.Int64Counter
		timers   metric.Float64Histogram
		gauges   metric.Float64Gauge
	}

	// ClueTracer wraps OTEL tracing for runtime tracing.
	ClueTracer struct {
		tracer trace.Tracer
	}

	clueSpan struct {
		span trace.Span
	}
)

// ScopeName is the instrumentation scope used for OTEL meters and tracers.
const ScopeName = "github.com/agentruntime/core"

// NewClueLogger constructs a Logger that delegates to goa.design/clue/log.
// The logger reads formatting/debug settings from the context (set via
// log.Context and log.WithFormat/log.WithDebug in the embedding
// application's bootstrap).
func NewClueLogger() Logger { return ClueLogger{} }

// NewClueMetrics constructs a Metrics recorder backed by the global OTEL
// MeterProvider. Configure the provider (e.g. via clue.ConfigureOpenTelemetry)
// before invoking runtime methods.
func NewClueMetrics() Metrics {
	meter := otel.Meter(ScopeName)
	m := &ClueMetrics{meter: meter}
	m.calls, _ = meter.Int64Counter("agentruntime_counter_total")
	m.timers, _ = meter.Float64Histogram("agentruntime_timer_seconds")
	m.gauges, _ = meter.Float64Gauge("agentruntime_gauge")
	return m
}

// NewClueTracer constructs a Tracer backed by the global OTEL TracerProvider.
func NewClueTracer() Tracer {
	return &ClueTracer{tracer: otel.Tracer(ScopeName)}
}

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, log.Fmt(msg), toClueKV(keyvals)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, log.Fmt(msg), toClueKV(keyvals)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, log.Fmt(msg), toClueKV(keyvals)...)
}

func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, log.Fmt(msg), toClueKV(keyvals)...)
}

func toClueKV(keyvals []any) []log.Fielder {
	fields := make([]log.Fielder, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, log.KV{K: key, V: keyvals[i+1]})
	}
	return fields
}

func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	if m.calls == nil {
		return
	}
	m.calls.Add(context.Background(), int64(value), metric.WithAttributes(tagsToAttrs(name, tags)...))
}

func (m *ClueMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	if m.timers == nil {
		return
	}
	m.timers.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagsToAttrs(name, tags)...))
}

func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	if m.gauges == nil {
		return
	}
	m.gauges.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(name, tags)...))
}

func tagsToAttrs(name string, tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2+1)
	attrs = append(attrs, attribute.String("metric", name))
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}

func (t *ClueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &clueSpan{span: span}
}

func (t *ClueTracer) Span(ctx context.Context) Span {
	return &clueSpan{span: trace.SpanFromContext(ctx)}
}

func (s *clueSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *clueSpan) AddEvent(name string, attrs ...any) {
	kvs := make([]attribute.KeyValue, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if val, ok := attrs[i+1].(string); ok {
			kvs = append(kvs, attribute.String(key, val))
		}
	}
	s.span.AddEvent(name, trace.WithAttributes(kvs...))
}

func (s *clueSpan) SetStatus(code codes.Code, description string) { s.span.SetStatus(code, description) }

func (s *clueSpan) RecordError(err error, opts ...trace.EventOption) { s.span.RecordError(err, opts...) }
