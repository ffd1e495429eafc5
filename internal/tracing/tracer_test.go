package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*DashboardTracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewDashboardTracerFrom(tp, "test"), rec
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestResolveAndBlockSpans(t *testing.T) {
	dt, rec := newRecorder(t)

	ctx, root := dt.StartResolveSpan(context.Background(), 42, true)
	_, block := dt.StartBlockSpan(ctx, 7, "chart", "sale.order")
	dt.RecordBlockMetrics(block, 15*time.Millisecond, "none")
	block.End()
	root.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)

	blockSpan, rootSpan := spans[0], spans[1]
	assert.Equal(t, "dashboard.block", blockSpan.Name())
	assert.Equal(t, "dashboard.resolve", rootSpan.Name())
	assert.Equal(t, rootSpan.SpanContext().SpanID(), blockSpan.Parent().SpanID())

	attrs := attrMap(blockSpan.Attributes())
	assert.Equal(t, int64(7), attrs["block.id"].AsInt64())
	assert.Equal(t, "chart", attrs["block.type"].AsString())
	assert.Equal(t, int64(15), attrs["block.duration_ms"].AsInt64())

	rootAttrs := attrMap(rootSpan.Attributes())
	assert.Equal(t, int64(42), rootAttrs["dashboard.action_id"].AsInt64())
	assert.True(t, rootAttrs["dashboard.date_range"].AsBool())
}

func TestRecordError(t *testing.T) {
	dt, rec := newRecorder(t)

	_, span := dt.StartCacheOperationSpan(context.Background(), "get", "k")
	dt.RecordCacheMetrics(span, false)
	dt.RecordError(span, errors.New("boom"), attribute.String("cache.node", "a"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
	assert.False(t, attrMap(spans[0].Attributes())["cache.hit"].AsBool())
}

func TestNoopTracerWithoutProvider(t *testing.T) {
	dt := NewDashboardTracer("noop")
	ctx, span := dt.StartResolveSpan(context.Background(), 1, false)
	assert.NotNil(t, ctx)
	span.End()
}
