package varrule

import (
	"context"
	"fmt"
	"sort"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// VariableEdge is one edge from a node to a property-bag node.
type VariableEdge struct {
	Key     string
	Index   int64
	Indexed bool
	BagID   int64
}

// Reader fetches node properties and variable edges for graph-side
// extractors. It caches by node id, so a property bag shared by many nodes
// is fetched once. A Reader belongs to one reconstruction pass; build a new
// one per call.
type Reader struct {
	session  graph.Session
	bagLabel string

	props   map[int64]map[string]any
	edges   map[int64][]VariableEdge
	fetches int
}

// NewReader returns a Reader over session. bagLabel is the label of
// property-bag nodes.
func NewReader(session graph.Session, bagLabel string) *Reader {
	return &Reader{
		session:  session,
		bagLabel: bagLabel,
		props:    make(map[int64]map[string]any),
		edges:    make(map[int64][]VariableEdge),
	}
}

// Fetches returns how many statements the Reader has run.
func (r *Reader) Fetches() int {
	return r.fetches
}

// Properties returns the property map of node id. The returned map is
// shared with the cache and must not be modified.
func (r *Reader) Properties(ctx context.Context, id int64) (map[string]any, error) {
	if p, ok := r.props[id]; ok {
		return p, nil
	}

	r.fetches++
	c, err := r.session.Run(ctx, graph.NodeByID(id))
	if err != nil {
		return nil, err
	}
	defer c.Close(ctx)

	rec, ok := c.Peek(ctx)
	if !ok {
		if err := c.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: id %d", ErrNodeNotFound, id)
	}

	props, err := graph.AsMap(rec[graph.ColProps])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrUnexpectedResult, err)
	}
	r.props[id] = props
	return props, nil
}

// VariableEdges returns the variable edges leaving node id, ordered by key
// and then by index.
func (r *Reader) VariableEdges(ctx context.Context, id int64) ([]VariableEdge, error) {
	if e, ok := r.edges[id]; ok {
		return e, nil
	}

	r.fetches++
	rows, err := graph.Query(ctx, r.session, graph.VariableEdges(id, r.bagLabel))
	if err != nil {
		return nil, err
	}

	edges := make([]VariableEdge, 0, len(rows))
	for _, row := range rows {
		key, err := graph.AsString(row[graph.ColKey])
		if err != nil {
			return nil, fmt.Errorf("%w: key column: %v", graph.ErrUnexpectedResult, err)
		}
		bag, err := graph.AsInt64(row[graph.ColBag])
		if err != nil {
			return nil, fmt.Errorf("%w: bag column: %v", graph.ErrUnexpectedResult, err)
		}
		e := VariableEdge{Key: key, BagID: bag}
		if row[graph.ColIndex] != nil {
			idx, err := graph.AsInt64(row[graph.ColIndex])
			if err != nil {
				return nil, fmt.Errorf("%w: index column: %v", graph.ErrUnexpectedResult, err)
			}
			e.Index = idx
			e.Indexed = true
		}
		edges = append(edges, e)
	}

	// the order is part of the contract, do not rely on the store for it
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Key != edges[j].Key {
			return edges[i].Key < edges[j].Key
		}
		return edges[i].Index < edges[j].Index
	})

	r.edges[id] = edges
	return edges, nil
}

// Variables returns the full variable mapping of node id: its own
// properties except the reserved name, plus one entry per variable edge key.
// An unindexed edge yields the bag's properties as a map; indexed edges
// yield a list of bag property maps in index order. Indexes of one key must
// run 0, 1, 2 and so on without gaps or repeats.
func (r *Reader) Variables(ctx context.Context, id int64) (map[string]any, error) {
	props, err := r.Properties(ctx, id)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]any, len(props))
	for k, v := range props {
		if k == graph.ReservedName {
			continue
		}
		vars[k] = v
	}

	edges, err := r.VariableEdges(ctx, id)
	if err != nil {
		return nil, err
	}

	lists := make(map[string][]any)
	maps := make(map[string]bool)
	for _, e := range edges {
		bag, err := r.Properties(ctx, e.BagID)
		if err != nil {
			return nil, err
		}
		value := copyMap(bag)

		if e.Indexed {
			if maps[e.Key] {
				return nil, fmt.Errorf("%w: %q on node %d", ErrMalformedVariable, e.Key, id)
			}
			if want := int64(len(lists[e.Key])); e.Index != want {
				return nil, fmt.Errorf("%w: %q on node %d has index %d, want %d",
					ErrMalformedVariable, e.Key, id, e.Index, want)
			}
			lists[e.Key] = append(lists[e.Key], value)
			continue
		}
		if maps[e.Key] || lists[e.Key] != nil {
			return nil, fmt.Errorf("%w: %q on node %d", ErrMalformedVariable, e.Key, id)
		}
		maps[e.Key] = true
		vars[e.Key] = value
	}
	for k, list := range lists {
		vars[k] = list
	}

	return vars, nil
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
