package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// StatementKind names the shape of a statement in the catalogue.
type StatementKind string

const (
	KindFindNodes          StatementKind = "find_nodes"
	KindFindOwnedNodes     StatementKind = "find_owned_nodes"
	KindNodeByID           StatementKind = "node_by_id"
	KindCreateNode         StatementKind = "create_node"
	KindCreateRelationship StatementKind = "create_relationship"
	KindSetProperties      StatementKind = "set_properties"
	KindOwnedNodes         StatementKind = "owned_nodes"
	KindOwnedChildren      StatementKind = "owned_children"
	KindVariableEdges      StatementKind = "variable_edges"
	KindFindPath           StatementKind = "find_path"
	KindDeleteOwned        StatementKind = "delete_owned"
	KindDeleteOrphans      StatementKind = "delete_orphans"
)

// Schema slots spliced into statements.
const (
	SlotLabel   = "label"
	SlotRel     = "rel"
	SlotOwn     = "own"
	SlotContain = "contain"
	SlotBag     = "bag"
)

// Parameter names shared by statements and their interpreters.
const (
	ParamName     = "name"
	ParamID       = "id"
	ParamOwner    = "owner"
	ParamFrom     = "from"
	ParamTo       = "to"
	ParamProps    = "props"
	ParamParent   = "parent"
	ParamStart    = "start"
	ParamMaxDepth = "max_depth"
)

// Result columns.
const (
	ColID     = "id"
	ColName   = "name"
	ColLabels = "labels"
	ColProps  = "props"
	ColKey    = "key"
	ColIndex  = "index"
	ColBag    = "bag"
)

// Statement is one entry of the statement catalogue.
type Statement struct {
	Kind   StatementKind
	Cypher string
	Params map[string]any
	Schema map[string]string
}

// String returns the Cypher text, for logging.
func (s Statement) String() string {
	return s.Cypher
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a label or relationship
// type without surprising anyone reading the graph.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// QuoteIdentifier back-quotes a schema identifier for splicing into Cypher.
func QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// FindNodes matches nodes with the given label and name.
func FindNodes(label, name string) Statement {
	return Statement{
		Kind: KindFindNodes,
		Cypher: fmt.Sprintf(
			"MATCH (n:%s {name: $name}) RETURN id(n) AS id, n.name AS name, labels(n) AS labels",
			QuoteIdentifier(label)),
		Params: map[string]any{ParamName: name},
		Schema: map[string]string{SlotLabel: label},
	}
}

// FindOwnedNodes matches nodes with the given label and name that are owned
// by the node with id owner.
func FindOwnedNodes(label, name, ownRel string, owner int64) Statement {
	return Statement{
		Kind: KindFindOwnedNodes,
		Cypher: fmt.Sprintf(
			"MATCH (n:%s {name: $name})-[:%s]->(r) WHERE id(r) = $owner "+
				"RETURN id(n) AS id, n.name AS name, labels(n) AS labels",
			QuoteIdentifier(label), QuoteIdentifier(ownRel)),
		Params: map[string]any{ParamName: name, ParamOwner: owner},
		Schema: map[string]string{SlotLabel: label, SlotOwn: ownRel},
	}
}

// NodeByID returns the labels and full property map of one node.
func NodeByID(id int64) Statement {
	return Statement{
		Kind:   KindNodeByID,
		Cypher: "MATCH (n) WHERE id(n) = $id RETURN id(n) AS id, labels(n) AS labels, properties(n) AS props",
		Params: map[string]any{ParamID: id},
	}
}

// CreateNode creates a node with one label and the given properties.
func CreateNode(label string, props map[string]any) Statement {
	return Statement{
		Kind:   KindCreateNode,
		Cypher: fmt.Sprintf("CREATE (n:%s $props) RETURN id(n) AS id", QuoteIdentifier(label)),
		Params: map[string]any{ParamProps: Normalize(props)},
		Schema: map[string]string{SlotLabel: label},
	}
}

// CreateRelationship creates a typed edge between two stored nodes.
func CreateRelationship(r *Relationship) Statement {
	props := r.Properties
	if props == nil {
		props = map[string]any{}
	}
	return Statement{
		Kind: KindCreateRelationship,
		Cypher: fmt.Sprintf(
			"MATCH (a), (b) WHERE id(a) = $from AND id(b) = $to CREATE (a)-[:%s $props]->(b)",
			QuoteIdentifier(r.Type)),
		Params: map[string]any{ParamFrom: r.FromID, ParamTo: r.ToID, ParamProps: Normalize(props)},
		Schema: map[string]string{SlotRel: r.Type},
	}
}

// SetProperties merges props into the properties of node id.
func SetProperties(id int64, props map[string]any) Statement {
	return Statement{
		Kind:   KindSetProperties,
		Cypher: "MATCH (n) WHERE id(n) = $id SET n += $props",
		Params: map[string]any{ParamID: id, ParamProps: Normalize(props)},
	}
}

// OwnedNodes returns every node owned by the node with id owner.
func OwnedNodes(ownRel string, owner int64) Statement {
	return Statement{
		Kind: KindOwnedNodes,
		Cypher: fmt.Sprintf(
			"MATCH (n)-[:%s]->(r) WHERE id(r) = $owner "+
				"RETURN id(n) AS id, n.name AS name, labels(n) AS labels ORDER BY id",
			QuoteIdentifier(ownRel)),
		Params: map[string]any{ParamOwner: owner},
		Schema: map[string]string{SlotOwn: ownRel},
	}
}

// OwnedChildren returns the containment children of parent that are owned by
// the node with id owner.
func OwnedChildren(parent int64, containRel, ownRel string, owner int64) Statement {
	return Statement{
		Kind: KindOwnedChildren,
		Cypher: fmt.Sprintf(
			"MATCH (p)-[:%s]->(c)-[:%s]->(r) WHERE id(p) = $parent AND id(r) = $owner "+
				"RETURN id(c) AS id, c.name AS name, labels(c) AS labels ORDER BY id",
			QuoteIdentifier(containRel), QuoteIdentifier(ownRel)),
		Params: map[string]any{ParamParent: parent, ParamOwner: owner},
		Schema: map[string]string{SlotContain: containRel, SlotOwn: ownRel},
	}
}

// VariableEdges returns every outgoing edge from node id into a bag node,
// ordered by variable key and then by element index.
func VariableEdges(id int64, bagLabel string) Statement {
	return Statement{
		Kind: KindVariableEdges,
		Cypher: fmt.Sprintf(
			"MATCH (n)-[v]->(b:%s) WHERE id(n) = $id "+
				"RETURN type(v) AS key, v.index AS index, id(b) AS bag ORDER BY key, index",
			QuoteIdentifier(bagLabel)),
		Params: map[string]any{ParamID: id},
		Schema: map[string]string{SlotBag: bagLabel},
	}
}

// FindPath looks for a node with the given label and name reachable from
// start through one or more containment edges. maxDepth <= 0 means unbounded.
func FindPath(start int64, containRel, label, name string, maxDepth int) Statement {
	hops := "*"
	if maxDepth > 0 {
		hops = fmt.Sprintf("*1..%d", maxDepth)
	}
	return Statement{
		Kind: KindFindPath,
		Cypher: fmt.Sprintf(
			"MATCH (a)-[:%s%s]->(h:%s {name: $name}) WHERE id(a) = $start RETURN id(h) AS id LIMIT 1",
			QuoteIdentifier(containRel), hops, QuoteIdentifier(label)),
		Params: map[string]any{ParamStart: start, ParamName: name, ParamMaxDepth: int64(maxDepth)},
		Schema: map[string]string{SlotContain: containRel, SlotLabel: label},
	}
}

// DeleteOwned detaches and deletes every node owned by the node with id owner.
func DeleteOwned(ownRel string, owner int64) Statement {
	return Statement{
		Kind: KindDeleteOwned,
		Cypher: fmt.Sprintf(
			"MATCH (n)-[:%s]->(r) WHERE id(r) = $owner DETACH DELETE n",
			QuoteIdentifier(ownRel)),
		Params: map[string]any{ParamOwner: owner},
		Schema: map[string]string{SlotOwn: ownRel},
	}
}

// DeleteOrphans deletes bag nodes that no longer have an incoming edge.
func DeleteOrphans(bagLabel string) Statement {
	return Statement{
		Kind:   KindDeleteOrphans,
		Cypher: fmt.Sprintf("MATCH (b:%s) WHERE NOT ()-->(b) DELETE b", QuoteIdentifier(bagLabel)),
		Params: map[string]any{},
		Schema: map[string]string{SlotBag: bagLabel},
	}
}
