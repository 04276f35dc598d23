package varrule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/graph/graphtest"
)

const bagLabel = "ANSIBLE_VARS"

func TestReader_VariablesReassemblesBags(t *testing.T) {
	ctx := context.Background()
	mem := graphtest.NewMemory()

	host := mem.AddNode([]string{"ANSIBLE_HOST"}, map[string]any{"name": "h1", "ip": "10.0.0.1"})
	conf := mem.AddNode([]string{bagLabel}, map[string]any{"port": 80})
	mem.AddRelationship(host, conf, "http", nil)
	for _, i := range []int{2, 0, 1} {
		bag := mem.AddNode([]string{bagLabel}, map[string]any{"a": i + 1})
		mem.AddRelationship(host, bag, "items", map[string]any{"index": i})
	}

	r := NewReader(mem, bagLabel)
	vars, err := r.Variables(ctx, host)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"ip":   "10.0.0.1",
		"http": map[string]any{"port": int64(80)},
		"items": []any{
			map[string]any{"a": int64(1)},
			map[string]any{"a": int64(2)},
			map[string]any{"a": int64(3)},
		},
	}, vars)
}

func TestReader_CachesByID(t *testing.T) {
	ctx := context.Background()
	mem := graphtest.NewMemory()

	shared := mem.AddNode([]string{bagLabel}, map[string]any{"x": 1})
	a := mem.AddNode([]string{"H"}, map[string]any{"name": "a"})
	b := mem.AddNode([]string{"H"}, map[string]any{"name": "b"})
	mem.AddRelationship(a, shared, "conf", nil)
	mem.AddRelationship(b, shared, "conf", nil)

	r := NewReader(mem, bagLabel)
	_, err := r.Variables(ctx, a)
	require.NoError(t, err)
	before := mem.CountKind(graph.KindNodeByID)

	_, err = r.Variables(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, before+1, mem.CountKind(graph.KindNodeByID), "shared bag fetched once")

	_, err = r.Variables(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, before+1, mem.CountKind(graph.KindNodeByID))
	assert.Equal(t, 5, r.Fetches())
}

func TestReader_FreshReaderDoesNotShareCache(t *testing.T) {
	ctx := context.Background()
	mem := graphtest.NewMemory()
	id := mem.AddNode([]string{"H"}, map[string]any{"name": "a", "v": 1})

	_, err := NewReader(mem, bagLabel).Properties(ctx, id)
	require.NoError(t, err)

	mem.ResetStatements()
	_, err = NewReader(mem, bagLabel).Properties(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, mem.CountKind(graph.KindNodeByID))
}

func TestReader_VariablesReturnedMapsAreCopies(t *testing.T) {
	ctx := context.Background()
	mem := graphtest.NewMemory()
	host := mem.AddNode([]string{"H"}, map[string]any{"name": "h"})
	bag := mem.AddNode([]string{bagLabel}, map[string]any{"x": 1})
	mem.AddRelationship(host, bag, "conf", nil)

	r := NewReader(mem, bagLabel)
	vars, err := r.Variables(ctx, host)
	require.NoError(t, err)
	vars["conf"].(map[string]any)["x"] = "changed"

	again, err := r.Variables(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again["conf"].(map[string]any)["x"])
}

func TestReader_MissingNode(t *testing.T) {
	_, err := NewReader(graphtest.NewMemory(), bagLabel).Properties(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestReader_MixedEdgesAreMalformed(t *testing.T) {
	ctx := context.Background()
	mem := graphtest.NewMemory()
	host := mem.AddNode([]string{"H"}, map[string]any{"name": "h"})
	b1 := mem.AddNode([]string{bagLabel}, map[string]any{"x": 1})
	b2 := mem.AddNode([]string{bagLabel}, map[string]any{"x": 2})
	mem.AddRelationship(host, b1, "conf", nil)
	mem.AddRelationship(host, b2, "conf", map[string]any{"index": 0})

	_, err := NewReader(mem, bagLabel).Variables(ctx, host)
	assert.ErrorIs(t, err, ErrMalformedVariable)
}

func TestReader_IndexesMustBeContiguous(t *testing.T) {
	tests := []struct {
		name    string
		indexes []int
		wantErr bool
	}{
		{name: "contiguous", indexes: []int{1, 0, 2}},
		{name: "single", indexes: []int{0}},
		{name: "not zero based", indexes: []int{1, 2}, wantErr: true},
		{name: "gap", indexes: []int{0, 2}, wantErr: true},
		{name: "duplicate", indexes: []int{0, 1, 1}, wantErr: true},
		{name: "negative", indexes: []int{-1, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := graphtest.NewMemory()
			host := mem.AddNode([]string{"H"}, map[string]any{"name": "h"})
			for _, i := range tt.indexes {
				bag := mem.AddNode([]string{bagLabel}, map[string]any{"i": i})
				mem.AddRelationship(host, bag, "items", map[string]any{"index": i})
			}

			vars, err := NewReader(mem, bagLabel).Variables(context.Background(), host)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedVariable)
				return
			}
			require.NoError(t, err)
			assert.Len(t, vars["items"], len(tt.indexes))
		})
	}
}

func TestReader_SessionErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	mem := graphtest.NewMemory()
	mem.FailOn(graph.KindNodeByID, boom)

	_, err := NewReader(mem, bagLabel).Variables(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}
