package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "`ANSIBLE_HOST`", QuoteIdentifier("ANSIBLE_HOST"))
	assert.Equal(t, "`we``ird`", QuoteIdentifier("we`ird"))
}

func TestValidIdentifier(t *testing.T) {
	tests := map[string]bool{
		"ANSIBLE_HOST": true,
		"_x1":          true,
		"http_port":    true,
		"1abc":         false,
		"has space":    false,
		"":             false,
		"a-b":          false,
	}
	for in, want := range tests {
		assert.Equal(t, want, ValidIdentifier(in), in)
	}
}

func TestStatements_SpliceSchemaAndParameterizeValues(t *testing.T) {
	s := FindNodes("SCRIPT", "ansible")
	assert.Equal(t, KindFindNodes, s.Kind)
	assert.Contains(t, s.Cypher, "(n:`SCRIPT` {name: $name})")
	assert.Equal(t, "ansible", s.Params[ParamName])
	assert.Equal(t, "SCRIPT", s.Schema[SlotLabel])

	c := CreateNode("ANSIBLE_HOST", map[string]any{"name": "h1", "port": 22})
	assert.Equal(t, int64(22), c.Params[ParamProps].(map[string]any)["port"])

	r := CreateRelationship(NewRelationship(1, 2, "http_port").WithIndex(0))
	assert.Contains(t, r.Cypher, "CREATE (a)-[:`http_port` $props]->(b)")
	assert.Equal(t, int64(1), r.Params[ParamFrom])

	e := VariableEdges(7, "ANSIBLE_VARS")
	assert.Contains(t, e.Cypher, "ORDER BY key, index")
}

func TestFindPath_Depth(t *testing.T) {
	unbounded := FindPath(1, "HAS", "ANSIBLE_HOST", "h1", 0)
	assert.Contains(t, unbounded.Cypher, "[:`HAS`*]")

	bounded := FindPath(1, "HAS", "ANSIBLE_HOST", "h1", 4)
	assert.Contains(t, bounded.Cypher, "[:`HAS`*1..4]")
	assert.Equal(t, int64(4), bounded.Params[ParamMaxDepth])
}
