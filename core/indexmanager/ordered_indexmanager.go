// Package indexmanager wraps the index families KuroDB exposes to an
// embedding engine behind a uniform, instrumented surface.
package indexmanager

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sushant-115/kurodb/core/indexing/bptree"
	"github.com/sushant-115/kurodb/core/kv"
	internaltelemetry "github.com/sushant-115/kurodb/internal/telemetry"
	"github.com/sushant-115/kurodb/pkg/telemetry"
)

// OrderedIndexManager fronts the B+ tree index with tracing spans and
// metric instruments around every operation.
type OrderedIndexManager struct {
	tree        *bptree.Bptree[kv.String, kv.String]
	tracer      trace.Tracer
	metrics     *internaltelemetry.IndexMetrics
	logger      *zap.Logger
	serviceName string
}

// NewOrderedIndexManager wires the tree to the telemetry components.
// Metric registration failures are logged, not fatal: the manager keeps
// working with tracing only.
func NewOrderedIndexManager(tree *bptree.Bptree[kv.String, kv.String], tel *telemetry.Telemetry, logger *zap.Logger) *OrderedIndexManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	indexMetrics, err := internaltelemetry.NewIndexMetrics(tel.Meter)
	if err != nil {
		logger.Warn("failed to create index metrics", zap.Error(err))
	}
	return &OrderedIndexManager{
		tree:        tree,
		tracer:      tel.Tracer,
		metrics:     indexMetrics,
		logger:      logger,
		serviceName: "ordered_indexmanager",
	}
}

func (m *OrderedIndexManager) Name() string { return "bptree" }

// Len returns the number of keys currently indexed.
func (m *OrderedIndexManager) Len() int { return m.tree.Len() }

// Put upserts a key/value pair into the index.
func (m *OrderedIndexManager) Put(ctx context.Context, key string, value []byte) error {
	metricCtx, span, startTime := m.StartMetricsAndTrace(ctx, "Put")
	defer func() {
		m.EndMetricsAndTrace(metricCtx, span, startTime, "Put", otelcodes.Ok)
	}()

	m.tree.Insert(kv.String(key), kv.String(value))
	return nil
}

// Get returns the value stored for key.
func (m *OrderedIndexManager) Get(ctx context.Context, key string) ([]byte, bool) {
	metricCtx, span, startTime := m.StartMetricsAndTrace(ctx, "Get")
	defer func() {
		m.EndMetricsAndTrace(metricCtx, span, startTime, "Get", otelcodes.Ok)
	}()

	value, found := m.tree.Search(kv.String(key))
	if !found {
		return nil, false
	}
	return []byte(value), true
}

// Delete removes key from the index and reports whether it was present.
func (m *OrderedIndexManager) Delete(ctx context.Context, key string) bool {
	metricCtx, span, startTime := m.StartMetricsAndTrace(ctx, "Delete")
	defer func() {
		m.EndMetricsAndTrace(metricCtx, span, startTime, "Delete", otelcodes.Ok)
	}()

	_, found := m.tree.Delete(kv.String(key))
	return found
}

// StartMetricsAndTrace begins the telemetry recording for an index
// operation. It returns a new context, the trace span, and the start
// time.
func (m *OrderedIndexManager) StartMetricsAndTrace(ctx context.Context, methodName string) (context.Context, trace.Span, time.Time) {
	startTime := time.Now()

	if m.metrics != nil {
		m.metrics.ActiveOpsUpDownCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("index.service", m.serviceName),
			attribute.String("index.method", methodName),
		))
		m.metrics.OpsStartedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("index.service", m.serviceName),
			attribute.String("index.method", methodName),
		))
	}

	ctx, span := m.tracer.Start(ctx, methodName, trace.WithAttributes(
		attribute.String("index.service", m.serviceName),
		attribute.String("index.method", methodName),
	))

	return ctx, span, startTime
}

// EndMetricsAndTrace completes the telemetry recording for an index
// operation.
func (m *OrderedIndexManager) EndMetricsAndTrace(ctx context.Context, span trace.Span, startTime time.Time, methodName string, statusCode otelcodes.Code) {
	latency := time.Since(startTime).Milliseconds()

	if statusCode != otelcodes.Ok {
		span.SetStatus(otelcodes.Error, statusCode.String())
	} else {
		span.SetStatus(otelcodes.Ok, "Success")
	}
	span.End()

	if m.metrics == nil {
		return
	}

	m.metrics.ActiveOpsUpDownCounter.Add(ctx, -1, metric.WithAttributes(
		attribute.String("index.service", m.serviceName),
		attribute.String("index.method", methodName),
	))

	metricAttributes := attribute.NewSet(
		attribute.String("index.service", m.serviceName),
		attribute.String("index.method", methodName),
		attribute.String("index.code", statusCode.String()),
	)

	m.metrics.OpLatencyHistogram.Record(ctx, latency, metric.WithAttributeSet(metricAttributes))
	m.metrics.OpsHandledCounter.Add(ctx, 1, metric.WithAttributeSet(metricAttributes))
}
