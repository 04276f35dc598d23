package ansiblegraph

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/graph/fingerprint"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// SanitizedValue identifies one variable value that was stored lossily or
// left out.
type SanitizedValue struct {
	Node   string `json:"node"`
	Label  string `json:"label"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// StoreReport summarizes one Store call.
type StoreReport struct {
	RepresentingID int64            `json:"representing_id"`
	Nodes          int              `json:"nodes"`
	Containment    int              `json:"containment"`
	Bags           int              `json:"bags"`
	VariableEdges  int              `json:"variable_edges"`
	Queries        int              `json:"queries"`
	Sanitized      []SanitizedValue `json:"sanitized,omitempty"`
	Dropped        []SanitizedValue `json:"dropped,omitempty"`
	Duration       time.Duration    `json:"duration"`
}

// Materializer writes inventories into the graph.
type Materializer struct {
	def  *Definition
	opts options
	inst *instruments
}

// NewMaterializer returns a Materializer for def.
func NewMaterializer(def *Definition, opts ...Option) (*Materializer, error) {
	if def == nil {
		return nil, wrapError("NewMaterializer", fmt.Errorf("%w: nil definition", ErrInvalidDefinition))
	}
	if err := def.Validate(); err != nil {
		return nil, wrapError("NewMaterializer", err)
	}
	o := buildOptions(opts)
	inst, err := newInstruments(o.meter)
	if err != nil {
		return nil, wrapError("NewMaterializer", err)
	}
	return &Materializer{def: def, opts: o, inst: inst}, nil
}

// plannedNode is one inventory node awaiting creation.
type plannedNode struct {
	node *graph.Node
	vars map[string]any

	// children holds correlation ids of child groups and member hosts
	children []string
}

// Store replaces the graph state of the Definition's logical inventory with
// inv. It runs these steps, in order:
//
//  1. Build one node per group and per host, with containment by correlation id
//  2. Locate the representing node; more than one is fatal before any write
//  3. Delete every node it owns and every property bag left unreferenced
//  4. Create the representing node if it was missing
//  5. Create inventory nodes, each with an ownership edge
//  6. Create containment edges
//  7. Write variables as properties and property bags
//
// A session failure aborts the call. Writes made before it stay in the
// graph; run Store again to converge.
//
// Store must not run concurrently with another Store or List on the same
// representing node.
func (m *Materializer) Store(ctx context.Context, s graph.Session, inv *source.Inventory) (_ *StoreReport, err error) {
	const op = "Materializer.Store"
	start := time.Now()
	report := &StoreReport{}

	ctx, span := m.opts.tracer.Start(ctx, "ansiblegraph.store")
	defer func() {
		report.Duration = time.Since(start)
		span.SetAttributes(
			attribute.String("representing.label", m.def.RepresentingLabel),
			attribute.String("representing.name", m.def.RepresentingName),
			attribute.Int("nodes", report.Nodes),
			attribute.Int("containment", report.Containment),
			attribute.Int("bags", report.Bags),
			attribute.Int("sanitized", len(report.Sanitized)+len(report.Dropped)),
			attribute.Int("queries", report.Queries),
		)
		m.inst.finish(ctx, span, op, start, err)
	}()

	if inv == nil {
		return nil, wrapError(op, fmt.Errorf("%w: nil inventory", ErrInvalidInventory))
	}
	if err := inv.Validate(); err != nil {
		return nil, wrapError(op, err)
	}

	plan, err := m.plan(inv)
	if err != nil {
		return nil, wrapError(op, err)
	}

	qs := m.inst.session(s)
	w := &writer{m: m, s: qs, report: report, ids: make(map[string]int64), bags: make(map[string]int64)}
	err = w.write(ctx, plan)
	report.Queries = qs.count
	if err != nil {
		return nil, wrapError(op, err).WithContext(map[string]any{
			"representing": m.def.RepresentingName,
		})
	}

	m.opts.logger.InfoContext(ctx, "inventory stored",
		"representing", m.def.RepresentingName,
		"nodes", report.Nodes,
		"containment", report.Containment,
		"bags", report.Bags,
		"variable_edges", report.VariableEdges,
		"sanitized", len(report.Sanitized),
		"dropped", len(report.Dropped),
	)
	report.Duration = time.Since(start)
	return report, nil
}

// plan builds the in-memory node set. Groups come first, then hosts, each
// in name order, so the write order is deterministic.
func (m *Materializer) plan(inv *source.Inventory) ([]*plannedNode, error) {
	seen := make(map[string]bool)
	newID := func() (string, error) {
		id := m.opts.newID()
		if id == "" || seen[id] {
			return "", fmt.Errorf("correlation id %q is not unique", id)
		}
		seen[id] = true
		return id, nil
	}

	groupIDs := make(map[string]string, len(inv.Groups))
	hostIDs := make(map[string]string, len(inv.Hosts))
	var plan []*plannedNode

	add := func(obj any, name string, vars map[string]any) (*plannedNode, error) {
		ident, err := m.def.Naming.Identify(obj)
		if err != nil {
			return nil, err
		}
		cid, err := newID()
		if err != nil {
			return nil, err
		}
		resolved, err := m.def.Vars.ResolveFromInventory(ident.GraphName(), ident.GraphLabel(), vars)
		if err != nil {
			return nil, err
		}
		p := &plannedNode{
			node: graph.NewNode(ident.GraphLabel(), ident.GraphName()).WithCorrelationID(cid),
			vars: resolved,
		}
		if err := p.node.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInventory, name, err)
		}
		plan = append(plan, p)
		return p, nil
	}

	var groups []*plannedNode
	for _, name := range inv.GroupNames() {
		g := inv.Groups[name]
		p, err := add(g, name, g.Vars)
		if err != nil {
			return nil, err
		}
		groupIDs[name] = p.node.CorrelationID
		groups = append(groups, p)
	}
	for _, name := range inv.HostNames() {
		h := inv.Hosts[name]
		p, err := add(h, name, h.Vars)
		if err != nil {
			return nil, err
		}
		hostIDs[name] = p.node.CorrelationID
	}

	for i, name := range inv.GroupNames() {
		g := inv.Groups[name]
		for _, c := range g.Children {
			groups[i].children = append(groups[i].children, groupIDs[c])
		}
		for _, h := range g.Hosts {
			groups[i].children = append(groups[i].children, hostIDs[h])
		}
	}

	return plan, nil
}

// writer carries the state of one Store call against the graph.
type writer struct {
	m      *Materializer
	s      graph.Session
	report *StoreReport

	// ids maps correlation ids to store-assigned ids
	ids map[string]int64

	// bags maps property-bag fingerprints to store-assigned ids, this pass only
	bags map[string]int64
}

func (w *writer) write(ctx context.Context, plan []*plannedNode) error {
	def := w.m.def

	repID, found, err := findRepresenting(ctx, w.s, def)
	if err != nil {
		return err
	}

	if found {
		if err := graph.Exec(ctx, w.s, graph.DeleteOwned(def.OwnershipType, repID)); err != nil {
			return err
		}
		if err := graph.Exec(ctx, w.s, graph.DeleteOrphans(def.BagLabel)); err != nil {
			return err
		}
		w.m.opts.logger.DebugContext(ctx, "previous inventory removed", "representing_id", repID)
	} else {
		repID, err = w.createNode(ctx, def.RepresentingLabel, map[string]any{graph.ReservedName: def.RepresentingName})
		if err != nil {
			return err
		}
		w.m.opts.logger.DebugContext(ctx, "representing node created", "representing_id", repID)
	}
	w.report.RepresentingID = repID

	for _, p := range plan {
		id, err := w.createNode(ctx, p.node.Label, map[string]any{graph.ReservedName: p.node.Name})
		if err != nil {
			return err
		}
		p.node.WithID(id)
		w.ids[p.node.CorrelationID] = id

		if err := w.relate(ctx, graph.NewRelationship(id, repID, def.OwnershipType)); err != nil {
			return err
		}
		w.report.Nodes++
	}
	w.m.inst.nodesWritten.Add(ctx, int64(w.report.Nodes))

	for _, p := range plan {
		for _, cid := range p.children {
			childID, ok := w.ids[cid]
			if !ok {
				return fmt.Errorf("%w: unresolved child %q of %s", ErrInvalidInventory, cid, p.node.Name)
			}
			if err := w.relate(ctx, graph.NewRelationship(p.node.ID, childID, def.ContainmentType)); err != nil {
				return err
			}
			w.report.Containment++
		}
	}

	for _, p := range plan {
		if err := w.writeVars(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) writeVars(ctx context.Context, p *plannedNode) error {
	props := make(map[string]any)

	for _, key := range graph.SortedKeys(p.vars) {
		if key == graph.ReservedName {
			w.drop(ctx, p, key, "reserved key")
			continue
		}
		if key == "" {
			w.drop(ctx, p, key, "empty key")
			continue
		}

		enc := encodeVariable(p.vars[key])
		for _, path := range enc.lossy {
			w.sanitize(ctx, p, joinPath(key, path))
		}
		for _, path := range enc.dropped {
			w.drop(ctx, p, joinPath(key, path), "null value")
		}

		switch enc.shape {
		case shapeProperty:
			props[key] = enc.value
		case shapeBag:
			if err := w.linkBag(ctx, p.node.ID, key, enc.bags[0], -1); err != nil {
				return err
			}
		case shapeBagList:
			for i, bag := range enc.bags {
				if err := w.linkBag(ctx, p.node.ID, key, bag, i); err != nil {
					return err
				}
			}
		}
	}

	if len(props) == 0 {
		return nil
	}
	return graph.Exec(ctx, w.s, graph.SetProperties(p.node.ID, props))
}

// linkBag links node to the property bag holding props, creating the bag
// unless an identical one was already written in this pass. index < 0 means
// an unindexed edge.
func (w *writer) linkBag(ctx context.Context, nodeID int64, key string, props map[string]any, index int) error {
	fp, err := fingerprint.Of(props)
	if err != nil {
		return err
	}

	bagID, ok := w.bags[fp]
	if !ok {
		bagID, err = w.createNode(ctx, w.m.def.BagLabel, props)
		if err != nil {
			return err
		}
		w.bags[fp] = bagID
		w.report.Bags++
		w.m.inst.bagsWritten.Add(ctx, 1)
	}

	rel := graph.NewRelationship(nodeID, bagID, key)
	if index >= 0 {
		rel.WithIndex(index)
	}
	if err := w.relate(ctx, rel); err != nil {
		return err
	}
	w.report.VariableEdges++
	return nil
}

func (w *writer) createNode(ctx context.Context, label string, props map[string]any) (int64, error) {
	rows, err := graph.Query(ctx, w.s, graph.CreateNode(label, props))
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("%w: create returned %d rows", graph.ErrUnexpectedResult, len(rows))
	}
	id, err := graph.AsInt64(rows[0][graph.ColID])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", graph.ErrUnexpectedResult, err)
	}
	return id, nil
}

func (w *writer) relate(ctx context.Context, r *graph.Relationship) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInventory, err)
	}
	return graph.Exec(ctx, w.s, graph.CreateRelationship(r))
}

func (w *writer) sanitize(ctx context.Context, p *plannedNode, key string) {
	v := SanitizedValue{Node: p.node.Name, Label: p.node.Label, Key: key, Reason: "converted to text"}
	w.report.Sanitized = append(w.report.Sanitized, v)
	w.m.inst.sanitized.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", v.Reason)))
	w.m.opts.logger.WarnContext(ctx, "variable stored lossily",
		"node", v.Node,
		"label", v.Label,
		"key", v.Key,
		"error", ErrLossySanitization,
	)
}

func (w *writer) drop(ctx context.Context, p *plannedNode, key, reason string) {
	v := SanitizedValue{Node: p.node.Name, Label: p.node.Label, Key: key, Reason: reason}
	w.report.Dropped = append(w.report.Dropped, v)
	w.m.inst.sanitized.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	w.m.opts.logger.WarnContext(ctx, "variable not stored",
		"node", v.Node,
		"label", v.Label,
		"key", v.Key,
		"reason", reason,
	)
}

// findRepresenting looks up the representing node. found is false when it
// does not exist; more than one match is ErrRepresentingNodeAmbiguous.
func findRepresenting(ctx context.Context, s graph.Session, def *Definition) (id int64, found bool, err error) {
	rows, err := graph.Query(ctx, s, graph.FindNodes(def.RepresentingLabel, def.RepresentingName))
	if err != nil {
		return 0, false, err
	}
	switch len(rows) {
	case 0:
		return 0, false, nil
	case 1:
		id, err := graph.AsInt64(rows[0][graph.ColID])
		if err != nil {
			return 0, false, fmt.Errorf("%w: %v", graph.ErrUnexpectedResult, err)
		}
		return id, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %d nodes match %s{name:%q}",
			ErrRepresentingNodeAmbiguous, len(rows), def.RepresentingLabel, def.RepresentingName)
	}
}
