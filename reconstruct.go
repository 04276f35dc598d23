package ansiblegraph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/naming"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
	"github.com/ntoofu/neo4j-ansible-inventory/varrule"
)

// Reconstructor reads inventories back from the graph. List and HostVars
// are read-only and may run concurrently with each other.
type Reconstructor struct {
	def  *Definition
	opts options
	inst *instruments
}

// NewReconstructor returns a Reconstructor for def.
func NewReconstructor(def *Definition, opts ...Option) (*Reconstructor, error) {
	if def == nil {
		return nil, wrapError("NewReconstructor", fmt.Errorf("%w: nil definition", ErrInvalidDefinition))
	}
	if err := def.Validate(); err != nil {
		return nil, wrapError("NewReconstructor", err)
	}
	o := buildOptions(opts)
	inst, err := newInstruments(o.meter)
	if err != nil {
		return nil, wrapError("NewReconstructor", err)
	}
	return &Reconstructor{def: def, opts: o, inst: inst}, nil
}

// List rebuilds the whole inventory owned by the representing node.
func (r *Reconstructor) List(ctx context.Context, s graph.Session) (_ *Listing, err error) {
	const op = "Reconstructor.List"
	start := time.Now()

	ctx, span := r.opts.tracer.Start(ctx, "ansiblegraph.list")
	qs := r.inst.session(s)
	var listing *Listing
	defer func() {
		attrs := []attribute.KeyValue{
			attribute.String("representing.name", r.def.RepresentingName),
			attribute.Int("queries", qs.count),
		}
		if listing != nil {
			attrs = append(attrs,
				attribute.Int("groups", len(listing.Groups)),
				attribute.Int("hosts", len(listing.HostVars)),
			)
		}
		span.SetAttributes(attrs...)
		r.inst.finish(ctx, span, op, start, err)
	}()

	listing, err = r.list(ctx, qs)
	if err != nil {
		listing = nil
		return nil, wrapError(op, err).WithContext(map[string]any{
			"representing": r.def.RepresentingName,
		})
	}

	r.opts.logger.DebugContext(ctx, "inventory listed",
		"groups", len(listing.Groups),
		"hosts", len(listing.HostVars),
		"queries", qs.count,
	)
	return listing, nil
}

func (r *Reconstructor) list(ctx context.Context, s graph.Session) (*Listing, error) {
	def := r.def

	repID, err := r.representing(ctx, s)
	if err != nil {
		return nil, err
	}

	rows, err := graph.Query(ctx, s, graph.OwnedNodes(def.OwnershipType, repID))
	if err != nil {
		return nil, err
	}

	reader := varrule.NewReader(s, def.BagLabel)
	listing := NewListing()

	for _, row := range rows {
		ref, ident, err := r.identify(row)
		if err != nil {
			return nil, err
		}

		vars, err := def.Vars.ResolveFromGraph(ctx, ref, reader)
		if err != nil {
			return nil, err
		}

		if ident.IsHost() {
			if _, dup := listing.HostVars[ident.InventoryName()]; dup {
				return nil, fmt.Errorf("%w: host %q", ErrDuplicateNode, ident.InventoryName())
			}
			listing.HostVars[ident.InventoryName()] = vars
			continue
		}

		if _, dup := listing.Groups[ident.InventoryName()]; dup {
			return nil, fmt.Errorf("%w: group %q", ErrDuplicateNode, ident.InventoryName())
		}
		entry := &GroupEntry{Vars: vars, Hosts: []string{}, Children: []string{}}

		children, err := graph.Query(ctx, s, graph.OwnedChildren(ref.ID, def.ContainmentType, def.OwnershipType, repID))
		if err != nil {
			return nil, err
		}
		for _, crow := range children {
			_, cident, err := r.identify(crow)
			if err != nil {
				return nil, err
			}
			if cident.IsHost() {
				entry.Hosts = appendName(entry.Hosts, cident.InventoryName())
			} else {
				entry.Children = appendName(entry.Children, cident.InventoryName())
			}
		}
		listing.Groups[ident.InventoryName()] = entry
	}

	if cycle := findCycle(listing.Groups); cycle != nil {
		return nil, fmt.Errorf("%w: %v", ErrCyclicContainment, cycle)
	}

	return listing, nil
}

// HostVars resolves the variables of one host, found by following
// containment edges from the "all" group.
func (r *Reconstructor) HostVars(ctx context.Context, s graph.Session, host string) (_ map[string]any, err error) {
	const op = "Reconstructor.HostVars"
	start := time.Now()

	ctx, span := r.opts.tracer.Start(ctx, "ansiblegraph.hostvars")
	qs := r.inst.session(s)
	defer func() {
		span.SetAttributes(
			attribute.String("representing.name", r.def.RepresentingName),
			attribute.String("host", host),
			attribute.Int("queries", qs.count),
		)
		r.inst.finish(ctx, span, op, start, err)
	}()

	vars, err := r.hostVars(ctx, qs, host)
	if err != nil {
		return nil, wrapError(op, err).WithContext(map[string]any{
			"representing": r.def.RepresentingName,
			"host":         host,
		})
	}
	return vars, nil
}

func (r *Reconstructor) hostVars(ctx context.Context, s graph.Session, host string) (map[string]any, error) {
	def := r.def

	repID, err := r.representing(ctx, s)
	if err != nil {
		return nil, err
	}

	allIdent, err := def.Naming.Identify(&source.Group{Name: source.GroupAll})
	if err != nil {
		return nil, err
	}
	hostIdent, err := def.Naming.Identify(&source.Host{Name: host})
	if err != nil {
		return nil, err
	}

	roots, err := graph.Query(ctx, s, graph.FindOwnedNodes(
		allIdent.GraphLabel(), allIdent.GraphName(), def.OwnershipType, repID))
	if err != nil {
		return nil, err
	}
	switch {
	case len(roots) == 0:
		return nil, fmt.Errorf("%w: %q: no %q group is stored", ErrHostNotFound, host, source.GroupAll)
	case len(roots) > 1:
		return nil, fmt.Errorf("%w: group %q", ErrDuplicateNode, source.GroupAll)
	}
	rootID, err := graph.AsInt64(roots[0][graph.ColID])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrUnexpectedResult, err)
	}

	found, err := graph.Query(ctx, s, graph.FindPath(
		rootID, def.ContainmentType, hostIdent.GraphLabel(), hostIdent.GraphName(), def.MaxPathDepth))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrHostNotFound, host)
	}
	hostID, err := graph.AsInt64(found[0][graph.ColID])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrUnexpectedResult, err)
	}

	ref := graph.NodeRef{ID: hostID, Label: hostIdent.GraphLabel(), Name: hostIdent.GraphName()}
	return def.Vars.ResolveFromGraph(ctx, ref, varrule.NewReader(s, def.BagLabel))
}

// representing returns the id of the representing node, which must exist
// exactly once.
func (r *Reconstructor) representing(ctx context.Context, s graph.Session) (int64, error) {
	id, found, err := findRepresenting(ctx, s, r.def)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %s{name:%q}", ErrRepresentingNodeNotFound, r.def.RepresentingLabel, r.def.RepresentingName)
	}
	return id, nil
}

// identify decodes a match row and applies the naming rule. Nodes must
// carry exactly one label, since the label decides host versus group.
func (r *Reconstructor) identify(row graph.Record) (graph.NodeRef, naming.Identity, error) {
	ref, labels, err := graph.NodeRefFromRecord(row)
	if err != nil {
		return graph.NodeRef{}, nil, err
	}
	if len(labels) != 1 {
		return graph.NodeRef{}, nil, fmt.Errorf("%w: node %d (%q) has labels %v", ErrMultipleLabels, ref.ID, ref.Name, labels)
	}
	ident, err := r.def.Naming.Identify(ref)
	if err != nil {
		return graph.NodeRef{}, nil, err
	}
	return ref, ident, nil
}

func appendName(list []string, name string) []string {
	for _, s := range list {
		if s == name {
			return list
		}
	}
	return append(list, name)
}

// findCycle returns the group names along one containment cycle, or nil.
func findCycle(groups map[string]*GroupEntry) []string {
	const (
		active = 1
		done   = 2
	)
	state := make(map[string]int, len(groups))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		switch state[name] {
		case active:
			for i, s := range stack {
				if s == name {
					return append(append([]string(nil), stack[i:]...), name)
				}
			}
		case done:
			return nil
		}
		g, ok := groups[name]
		if !ok {
			return nil
		}
		state[name] = active
		stack = append(stack, name)
		for _, c := range g.Children {
			if cycle := visit(c); cycle != nil {
				return cycle
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	return nil
}
