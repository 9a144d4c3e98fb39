package store

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/conneroisu/folio/internal/store"

type metrics struct {
	queryCount    metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

type observability struct {
	logger             *slog.Logger
	tracer             trace.Tracer
	metrics            *metrics
	slowQueryThreshold time.Duration
	logQueries         bool
}

func defaultObservability() *observability {
	return &observability{slowQueryThreshold: 200 * time.Millisecond}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for failed and slow queries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.obs.logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer for store spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.obs.tracer = tracer
	}
}

// WithDefaultTracer uses the global OpenTelemetry tracer provider.
func WithDefaultTracer() Option {
	return func(s *Store) {
		s.obs.tracer = otel.Tracer(instrumentationName)
	}
}

// WithMeter records query metrics on meter.
func WithMeter(meter metric.Meter) Option {
	return func(s *Store) {
		s.obs.metrics = initMetrics(meter)
	}
}

// WithDefaultMeter uses the global OpenTelemetry meter provider.
func WithDefaultMeter() Option {
	return func(s *Store) {
		s.obs.metrics = initMetrics(otel.Meter(instrumentationName))
	}
}

// WithSlowQueryThreshold sets how long a query may take before it is logged
// as slow.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *Store) {
		s.obs.slowQueryThreshold = d
	}
}

// WithQueryLogging logs every statement at debug level.
func WithQueryLogging(enabled bool) Option {
	return func(s *Store) {
		s.obs.logQueries = enabled
	}
}

func initMetrics(meter metric.Meter) *metrics {
	queryCount, _ := meter.Int64Counter("folio.store.query.count",
		metric.WithDescription("Total number of store queries executed"),
		metric.WithUnit("{query}"),
	)

	queryDuration, _ := meter.Float64Histogram("folio.store.query.duration",
		metric.WithDescription("Store query duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500),
	)

	queryErrors, _ := meter.Int64Counter("folio.store.query.errors",
		metric.WithDescription("Total number of failed store queries"),
		metric.WithUnit("{error}"),
	)

	return &metrics{
		queryCount:    queryCount,
		queryDuration: queryDuration,
		queryErrors:   queryErrors,
	}
}

// spanWrapper tolerates a nil span so call sites need no tracer checks.
type spanWrapper struct {
	span trace.Span
}

func (w spanWrapper) End() {
	if w.span != nil {
		w.span.End()
	}
}

func (w spanWrapper) fail(err error) {
	if w.span != nil {
		w.span.RecordError(err)
		w.span.SetStatus(codes.Error, err.Error())
	}
}

func (w spanWrapper) SetAttributes(kv ...attribute.KeyValue) {
	if w.span != nil {
		w.span.SetAttributes(kv...)
	}
}

func (s *Store) startSpan(ctx context.Context, operation string) (context.Context, spanWrapper) {
	if s.obs.tracer == nil {
		return ctx, spanWrapper{}
	}
	ctx, span := s.obs.tracer.Start(ctx, "store."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", s.dialect.System()),
			attribute.String("db.operation", operation),
		),
	)
	return ctx, spanWrapper{span}
}

// observe records metrics and logs for one finished statement.
func (s *Store) observe(ctx context.Context, operation, query string, duration time.Duration, err error) {
	if m := s.obs.metrics; m != nil {
		attrs := metric.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.system", s.dialect.System()),
		)
		m.queryCount.Add(ctx, 1, attrs)
		m.queryDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
		if err != nil {
			m.queryErrors.Add(ctx, 1, attrs)
		}
	}

	if s.obs.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.Duration("duration", duration),
	}
	if s.obs.logQueries {
		attrs = append(attrs, slog.String("query", query))
	}

	switch {
	case err != nil:
		s.obs.logger.LogAttrs(ctx, slog.LevelError, "query failed", append(attrs, slog.String("error", err.Error()))...)
	case duration > s.obs.slowQueryThreshold:
		s.obs.logger.LogAttrs(ctx, slog.LevelWarn, "slow query", attrs...)
	case s.obs.logQueries:
		s.obs.logger.LogAttrs(ctx, slog.LevelDebug, "query executed", attrs...)
	}
}

func rowCount(n int) attribute.KeyValue {
	return attribute.Int("db.response.returned_rows", n)
}
