package graphtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

func createNode(t *testing.T, m *Memory, label string, props map[string]any) int64 {
	t.Helper()
	rows, err := graph.Query(context.Background(), m, graph.CreateNode(label, props))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id, err := graph.AsInt64(rows[0][graph.ColID])
	require.NoError(t, err)
	return id
}

func TestMemory_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id := createNode(t, m, "SCRIPT", map[string]any{"name": "ansible", "port": 22})

	rows, err := graph.Query(ctx, m, graph.FindNodes("SCRIPT", "ansible"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	ref, labels, err := graph.NodeRefFromRecord(rows[0])
	require.NoError(t, err)
	assert.Equal(t, id, ref.ID)
	assert.Equal(t, []string{"SCRIPT"}, labels)

	node, ok := m.Node(id)
	require.True(t, ok)
	assert.Equal(t, int64(22), node.Properties["port"])
	assert.Equal(t, "ansible", node.Name())

	rows, err = graph.Query(ctx, m, graph.FindNodes("OTHER", "ansible"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemory_OwnershipScopedQueries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rep := m.AddNode([]string{"SCRIPT"}, map[string]any{"name": "ansible"})
	other := m.AddNode([]string{"SCRIPT"}, map[string]any{"name": "other"})
	web := m.AddNode([]string{"G"}, map[string]any{"name": "web"})
	h1 := m.AddNode([]string{"H"}, map[string]any{"name": "h1"})
	foreign := m.AddNode([]string{"H"}, map[string]any{"name": "h2"})

	m.AddRelationship(web, rep, "USE", nil)
	m.AddRelationship(h1, rep, "USE", nil)
	m.AddRelationship(foreign, other, "USE", nil)
	m.AddRelationship(web, h1, "HAS", nil)
	m.AddRelationship(web, foreign, "HAS", nil)

	owned, err := graph.Query(ctx, m, graph.OwnedNodes("USE", rep))
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	children, err := graph.Query(ctx, m, graph.OwnedChildren(web, "HAS", "USE", rep))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "h1", children[0][graph.ColName])

	found, err := graph.Query(ctx, m, graph.FindOwnedNodes("H", "h2", "USE", rep))
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, graph.Exec(ctx, m, graph.DeleteOwned("USE", rep)))
	assert.Len(t, m.Nodes(""), 3)
	assert.Len(t, m.Relationships(""), 1)
}

func TestMemory_VariableEdgesOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	host := m.AddNode([]string{"H"}, map[string]any{"name": "h1"})
	for _, i := range []int{2, 0, 1} {
		bag := m.AddNode([]string{"BAG"}, map[string]any{"a": i})
		m.AddRelationship(host, bag, "items", map[string]any{"index": i})
	}
	nested := m.AddNode([]string{"BAG"}, map[string]any{"x": 1})
	m.AddRelationship(host, nested, "conf", nil)

	rows, err := graph.Query(ctx, m, graph.VariableEdges(host, "BAG"))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "conf", rows[0][graph.ColKey])
	assert.Nil(t, rows[0][graph.ColIndex])
	for i := 0; i < 3; i++ {
		assert.Equal(t, "items", rows[i+1][graph.ColKey])
		assert.Equal(t, int64(i), rows[i+1][graph.ColIndex])
	}
}

func TestMemory_FindPath(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	all := m.AddNode([]string{"G"}, map[string]any{"name": "all"})
	web := m.AddNode([]string{"G"}, map[string]any{"name": "web"})
	front := m.AddNode([]string{"G"}, map[string]any{"name": "front"})
	h1 := m.AddNode([]string{"H"}, map[string]any{"name": "h1"})
	m.AddRelationship(all, web, "HAS", nil)
	m.AddRelationship(web, front, "HAS", nil)
	m.AddRelationship(front, h1, "HAS", nil)
	m.AddRelationship(front, web, "HAS", nil)

	rows, err := graph.Query(ctx, m, graph.FindPath(all, "HAS", "H", "h1", 0))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, h1, rows[0][graph.ColID])

	rows, err = graph.Query(ctx, m, graph.FindPath(all, "HAS", "H", "h1", 2))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = graph.Query(ctx, m, graph.FindPath(all, "HAS", "H", "nope", 0))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemory_SetPropertiesAndOrphans(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	n := m.AddNode([]string{"H"}, map[string]any{"name": "h1", "gone": true})
	orphan := m.AddNode([]string{"BAG"}, map[string]any{"a": 1})
	kept := m.AddNode([]string{"BAG"}, map[string]any{"a": 2})
	m.AddRelationship(n, kept, "k", nil)

	require.NoError(t, graph.Exec(ctx, m, graph.SetProperties(n, map[string]any{"ip": "10.0.0.1", "gone": nil})))
	node, _ := m.Node(n)
	assert.Equal(t, "10.0.0.1", node.Properties["ip"])
	assert.NotContains(t, node.Properties, "gone")

	require.NoError(t, graph.Exec(ctx, m, graph.DeleteOrphans("BAG")))
	_, ok := m.Node(orphan)
	assert.False(t, ok)
	_, ok = m.Node(kept)
	assert.True(t, ok)
}

func TestMemory_FailOn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	m.FailOn(graph.KindCreateNode, boom)
	_, err := m.Run(ctx, graph.CreateNode("L", map[string]any{"name": "x"}))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, m.Nodes(""))
	assert.Equal(t, 1, m.CountKind(graph.KindCreateNode))

	m.FailOn(graph.KindCreateNode, nil)
	_, err = m.Run(ctx, graph.CreateNode("L", map[string]any{"name": "x"}))
	assert.NoError(t, err)
}

func TestMemory_UnsupportedKind(t *testing.T) {
	_, err := NewMemory().Run(context.Background(), graph.Statement{Kind: "bogus"})
	assert.ErrorIs(t, err, graph.ErrUnsupportedStatement)
}
