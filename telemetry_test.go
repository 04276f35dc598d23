package ansiblegraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/graph/graphtest"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, Option) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, WithTracer(tp.Tracer("test"))
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestTracing_Store(t *testing.T) {
	sr, withTracer := newRecorder(t)
	m := newMaterializer(t, DefaultDefinition(), withTracer)

	_, err := m.Store(context.Background(), graphtest.NewMemory(), scenarioInventory())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "ansiblegraph.store", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := attrMap(span.Attributes())
	assert.Equal(t, int64(2), attrs["nodes"].AsInt64())
	assert.Equal(t, int64(1), attrs["containment"].AsInt64())
	assert.Equal(t, "ansible", attrs["representing.name"].AsString())
}

func TestTracing_ListFailure(t *testing.T) {
	sr, withTracer := newRecorder(t)
	r := newReconstructor(t, DefaultDefinition(), withTracer)

	mem := graphtest.NewMemory()
	mem.FailOn(graph.KindFindNodes, errors.New("unavailable"))
	_, err := r.List(context.Background(), mem)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "ansiblegraph.list", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, KindQuery, attrMap(span.Attributes())["error.kind"].AsString())
	assert.NotEmpty(t, span.Events(), "error is recorded on the span")
}

func TestTracing_HostVars(t *testing.T) {
	mem, _ := store(t, loadInventory(t, "roundtrip.yml"))

	sr, withTracer := newRecorder(t)
	_, err := newReconstructor(t, DefaultDefinition(), withTracer).HostVars(context.Background(), mem, "h1")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "h1", attrs["host"].AsString())
	assert.Greater(t, attrs["queries"].AsInt64(), int64(2))
}
