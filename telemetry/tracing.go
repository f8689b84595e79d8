package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Skryldev/product-catalog"

// QueryTracer implements db.Tracer with OpenTelemetry spans. Without a
// configured TracerProvider the global no-op provider is used and spans cost
// nothing.
type QueryTracer struct {
	tracer trace.Tracer
	system string
}

// NewQueryTracer returns a tracer tagging spans with db.system. A nil tracer
// selects the global provider's tracer.
func NewQueryTracer(tracer trace.Tracer, system string) *QueryTracer {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return &QueryTracer{tracer: tracer, system: system}
}

func (t *QueryTracer) StartSpan(ctx context.Context, query string) context.Context {
	ctx, _ = t.tracer.Start(ctx, "db."+operation(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", query),
		),
	)
	return ctx
}

func (t *QueryTracer) EndSpan(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// OTelQueryMetrics implements db.MetricsCollector with OpenTelemetry
// instruments, for deployments that export through an OTel collector rather
// than scraping /metrics.
type OTelQueryMetrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	system   attribute.KeyValue
}

// NewOTelQueryMetrics creates the instruments on meter. A nil meter selects
// the global provider's meter.
func NewOTelQueryMetrics(meter metric.Meter, system string) (*OTelQueryMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	count, err := meter.Int64Counter("catalog.db.query.count",
		metric.WithDescription("Total number of SQL statements executed"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("catalog.db.query.duration",
		metric.WithDescription("Statement execution duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("catalog.db.query.errors",
		metric.WithDescription("Total number of failed SQL statements"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	return &OTelQueryMetrics{
		count:    count,
		duration: duration,
		errors:   errs,
		system:   attribute.String("db.system", system),
	}, nil
}

func (m *OTelQueryMetrics) RecordQuery(query string, d time.Duration, success bool) {
	ctx := context.Background()
	attrs := metric.WithAttributes(m.system, attribute.String("db.operation", operation(query)))
	m.count.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	if !success {
		m.errors.Add(ctx, 1, attrs)
	}
}
