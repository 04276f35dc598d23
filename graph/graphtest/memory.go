// Package graphtest provides an in-memory graph.Session for tests.
//
// Memory interprets the statement catalogue by Kind rather than parsing
// Cypher, applying the same matching semantics a Neo4j server would for the
// shapes the mapping engine issues. Values are normalized on write so reads
// return int64/float64/[]any exactly like the real driver.
package graphtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// StoredNode is a snapshot of a node held by Memory.
type StoredNode struct {
	ID         int64
	Labels     []string
	Properties map[string]any
}

// Name returns the reserved name property, or "".
func (n StoredNode) Name() string {
	s, _ := n.Properties[graph.ReservedName].(string)
	return s
}

// StoredRelationship is a snapshot of a relationship held by Memory.
type StoredRelationship struct {
	ID         int64
	FromID     int64
	ToID       int64
	Type       string
	Properties map[string]any
}

// Memory is an in-memory graph. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	nodes    map[int64]*StoredNode
	rels     []*StoredRelationship
	log      []graph.Statement
	failures map[graph.StatementKind]error
}

var _ graph.Session = (*Memory)(nil)

// NewMemory returns an empty graph.
func NewMemory() *Memory {
	return &Memory{
		nodes:    make(map[int64]*StoredNode),
		failures: make(map[graph.StatementKind]error),
	}
}

// FailOn makes every later statement of the given kind fail with err.
// A nil err clears the failure.
func (m *Memory) FailOn(kind graph.StatementKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, kind)
		return
	}
	m.failures[kind] = err
}

// Statements returns every statement run so far, in order.
func (m *Memory) Statements() []graph.Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]graph.Statement, len(m.log))
	copy(out, m.log)
	return out
}

// CountKind returns how many statements of kind have been run.
func (m *Memory) CountKind(kind graph.StatementKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.log {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// ResetStatements clears the statement log.
func (m *Memory) ResetStatements() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}

// AddNode seeds a node and returns its id.
func (m *Memory) AddNode(labels []string, props map[string]any) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createNode(labels, props)
}

// AddRelationship seeds a relationship between two existing nodes.
func (m *Memory) AddRelationship(from, to int64, relType string, props map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createRelationship(from, to, relType, props)
}

// Nodes returns snapshots of every node carrying label, ordered by id.
// An empty label returns every node.
func (m *Memory) Nodes(label string) []StoredNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []StoredNode
	for _, id := range m.sortedIDs() {
		n := m.nodes[id]
		if label == "" || hasLabel(n, label) {
			out = append(out, snapshotNode(n))
		}
	}
	return out
}

// Node returns a snapshot of one node.
func (m *Memory) Node(id int64) (StoredNode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return StoredNode{}, false
	}
	return snapshotNode(n), true
}

// Relationships returns snapshots of every relationship of relType in
// creation order. An empty relType returns every relationship.
func (m *Memory) Relationships(relType string) []StoredRelationship {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []StoredRelationship
	for _, r := range m.rels {
		if relType == "" || r.Type == relType {
			out = append(out, StoredRelationship{
				ID:         r.ID,
				FromID:     r.FromID,
				ToID:       r.ToID,
				Type:       r.Type,
				Properties: copyProps(r.Properties),
			})
		}
	}
	return out
}

// Run implements graph.Session.
func (m *Memory) Run(ctx context.Context, stmt graph.Statement) (graph.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.log = append(m.log, stmt)
	if err, ok := m.failures[stmt.Kind]; ok {
		return nil, err
	}

	rows, err := m.execute(stmt)
	if err != nil {
		return nil, err
	}
	return graph.NewSliceCursor(rows), nil
}

func (m *Memory) execute(stmt graph.Statement) ([]graph.Record, error) {
	p := stmt.Params
	s := stmt.Schema

	switch stmt.Kind {
	case graph.KindFindNodes:
		name := p[graph.ParamName]
		var rows []graph.Record
		for _, id := range m.sortedIDs() {
			n := m.nodes[id]
			if hasLabel(n, s[graph.SlotLabel]) && n.Properties[graph.ReservedName] == name {
				rows = append(rows, refRow(n))
			}
		}
		return rows, nil

	case graph.KindFindOwnedNodes:
		name := p[graph.ParamName]
		owner := int64Param(p, graph.ParamOwner)
		var rows []graph.Record
		for _, id := range m.sortedIDs() {
			n := m.nodes[id]
			if hasLabel(n, s[graph.SlotLabel]) && n.Properties[graph.ReservedName] == name &&
				m.hasEdge(n.ID, owner, s[graph.SlotOwn]) {
				rows = append(rows, refRow(n))
			}
		}
		return rows, nil

	case graph.KindNodeByID:
		n, ok := m.nodes[int64Param(p, graph.ParamID)]
		if !ok {
			return nil, nil
		}
		return []graph.Record{{
			graph.ColID:     n.ID,
			graph.ColLabels: labelList(n),
			graph.ColProps:  copyProps(n.Properties),
		}}, nil

	case graph.KindCreateNode:
		props, err := graph.AsMap(p[graph.ParamProps])
		if err != nil {
			return nil, err
		}
		id := m.createNode([]string{s[graph.SlotLabel]}, props)
		return []graph.Record{{graph.ColID: id}}, nil

	case graph.KindCreateRelationship:
		props, err := graph.AsMap(p[graph.ParamProps])
		if err != nil {
			return nil, err
		}
		m.createRelationship(int64Param(p, graph.ParamFrom), int64Param(p, graph.ParamTo), s[graph.SlotRel], props)
		return nil, nil

	case graph.KindSetProperties:
		n, ok := m.nodes[int64Param(p, graph.ParamID)]
		if !ok {
			return nil, nil
		}
		props, err := graph.AsMap(p[graph.ParamProps])
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			if v == nil {
				delete(n.Properties, k)
				continue
			}
			n.Properties[k] = graph.NormalizeValue(v)
		}
		return nil, nil

	case graph.KindOwnedNodes:
		owner := int64Param(p, graph.ParamOwner)
		var rows []graph.Record
		for _, id := range m.sortedIDs() {
			if m.hasEdge(id, owner, s[graph.SlotOwn]) {
				rows = append(rows, refRow(m.nodes[id]))
			}
		}
		return rows, nil

	case graph.KindOwnedChildren:
		parent := int64Param(p, graph.ParamParent)
		owner := int64Param(p, graph.ParamOwner)
		var rows []graph.Record
		for _, r := range m.rels {
			if r.FromID != parent || r.Type != s[graph.SlotContain] {
				continue
			}
			if m.hasEdge(r.ToID, owner, s[graph.SlotOwn]) {
				rows = append(rows, refRow(m.nodes[r.ToID]))
			}
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i][graph.ColID].(int64) < rows[j][graph.ColID].(int64)
		})
		return rows, nil

	case graph.KindVariableEdges:
		id := int64Param(p, graph.ParamID)
		var rows []graph.Record
		for _, r := range m.rels {
			if r.FromID != id {
				continue
			}
			if b, ok := m.nodes[r.ToID]; ok && hasLabel(b, s[graph.SlotBag]) {
				rows = append(rows, graph.Record{
					graph.ColKey:   r.Type,
					graph.ColIndex: r.Properties[graph.ReservedIndex],
					graph.ColBag:   b.ID,
				})
			}
		}
		sort.SliceStable(rows, func(i, j int) bool {
			ki, kj := rows[i][graph.ColKey].(string), rows[j][graph.ColKey].(string)
			if ki != kj {
				return ki < kj
			}
			return indexLess(rows[i][graph.ColIndex], rows[j][graph.ColIndex])
		})
		return rows, nil

	case graph.KindFindPath:
		id, ok := m.findPath(
			int64Param(p, graph.ParamStart),
			s[graph.SlotContain], s[graph.SlotLabel],
			p[graph.ParamName],
			int(int64Param(p, graph.ParamMaxDepth)))
		if !ok {
			return nil, nil
		}
		return []graph.Record{{graph.ColID: id}}, nil

	case graph.KindDeleteOwned:
		owner := int64Param(p, graph.ParamOwner)
		var doomed []int64
		for _, id := range m.sortedIDs() {
			if m.hasEdge(id, owner, s[graph.SlotOwn]) {
				doomed = append(doomed, id)
			}
		}
		for _, id := range doomed {
			m.detachDelete(id)
		}
		return nil, nil

	case graph.KindDeleteOrphans:
		var doomed []int64
		for _, id := range m.sortedIDs() {
			if hasLabel(m.nodes[id], s[graph.SlotBag]) && !m.hasIncoming(id) {
				doomed = append(doomed, id)
			}
		}
		for _, id := range doomed {
			m.detachDelete(id)
		}
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %s", graph.ErrUnsupportedStatement, stmt.Kind)
}

func (m *Memory) createNode(labels []string, props map[string]any) int64 {
	m.nextID++
	n := &StoredNode{
		ID:         m.nextID,
		Labels:     append([]string(nil), labels...),
		Properties: make(map[string]any, len(props)),
	}
	for k, v := range props {
		if v != nil {
			n.Properties[k] = graph.NormalizeValue(v)
		}
	}
	m.nodes[n.ID] = n
	return n.ID
}

// createRelationship mirrors MATCH ... CREATE: no-op when an endpoint is missing.
func (m *Memory) createRelationship(from, to int64, relType string, props map[string]any) {
	if _, ok := m.nodes[from]; !ok {
		return
	}
	if _, ok := m.nodes[to]; !ok {
		return
	}
	m.nextID++
	r := &StoredRelationship{
		ID:         m.nextID,
		FromID:     from,
		ToID:       to,
		Type:       relType,
		Properties: make(map[string]any, len(props)),
	}
	for k, v := range props {
		if v != nil {
			r.Properties[k] = graph.NormalizeValue(v)
		}
	}
	m.rels = append(m.rels, r)
}

func (m *Memory) detachDelete(id int64) {
	kept := m.rels[:0]
	for _, r := range m.rels {
		if r.FromID != id && r.ToID != id {
			kept = append(kept, r)
		}
	}
	m.rels = kept
	delete(m.nodes, id)
}

func (m *Memory) hasEdge(from, to int64, relType string) bool {
	for _, r := range m.rels {
		if r.FromID == from && r.ToID == to && r.Type == relType {
			return true
		}
	}
	return false
}

func (m *Memory) hasIncoming(id int64) bool {
	for _, r := range m.rels {
		if r.ToID == id {
			return true
		}
	}
	return false
}

// findPath does a breadth-first walk along relType from start, never
// revisiting a node, and returns the first match at depth one or more.
func (m *Memory) findPath(start int64, relType, label string, name any, maxDepth int) (int64, bool) {
	visited := map[int64]bool{start: true}
	frontier := []int64{start}
	for depth := 1; len(frontier) > 0 && (maxDepth <= 0 || depth <= maxDepth); depth++ {
		var next []int64
		for _, from := range frontier {
			for _, r := range m.rels {
				if r.FromID != from || r.Type != relType {
					continue
				}
				n := m.nodes[r.ToID]
				if hasLabel(n, label) && n.Properties[graph.ReservedName] == name {
					return n.ID, true
				}
				if !visited[r.ToID] {
					visited[r.ToID] = true
					next = append(next, r.ToID)
				}
			}
		}
		frontier = next
	}
	return 0, false
}

func (m *Memory) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func hasLabel(n *StoredNode, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func refRow(n *StoredNode) graph.Record {
	return graph.Record{
		graph.ColID:     n.ID,
		graph.ColName:   n.Properties[graph.ReservedName],
		graph.ColLabels: labelList(n),
	}
}

func labelList(n *StoredNode) []any {
	out := make([]any, len(n.Labels))
	for i, l := range n.Labels {
		out[i] = l
	}
	return out
}

func snapshotNode(n *StoredNode) StoredNode {
	return StoredNode{
		ID:         n.ID,
		Labels:     append([]string(nil), n.Labels...),
		Properties: copyProps(n.Properties),
	}
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func int64Param(p map[string]any, key string) int64 {
	v, _ := graph.AsInt64(p[key])
	return v
}

// indexLess orders nulls last, like Cypher's ascending ORDER BY.
func indexLess(a, b any) bool {
	ai, aerr := graph.AsInt64(a)
	bi, berr := graph.AsInt64(b)
	switch {
	case aerr != nil:
		return false
	case berr != nil:
		return true
	default:
		return ai < bi
	}
}
