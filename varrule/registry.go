// Package varrule decides which variables are written for, and read back
// from, each inventory node.
//
// A Registry is an ordered list of matchers, each bound to one or more
// extractors. Resolving a node applies every matching extractor in
// registration order and merges their results, later keys winning.
//
// Each Extractor has an inventory side, a pure function of the loaded vars,
// and a graph side that reads through a per-call Reader.
package varrule

import (
	"context"
	"fmt"
	"sync"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// Extractor produces a variable mapping for one node on either side.
type Extractor struct {
	// Name identifies the extractor in logs and configuration.
	Name string

	// FromInventory extracts variables from an inventory object's vars.
	FromInventory func(vars map[string]any) (map[string]any, error)

	// FromGraph extracts variables for a stored node.
	FromGraph func(ctx context.Context, ref graph.NodeRef, r *Reader) (map[string]any, error)
}

func (e Extractor) validate() error {
	if e.FromInventory == nil || e.FromGraph == nil {
		return fmt.Errorf("%w: %q needs both an inventory and a graph side", ErrInvalidExtractor, e.Name)
	}
	return nil
}

type entry struct {
	matcher    *Matcher
	extractors []Extractor
}

// Registry binds matchers to extractors. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds extractors to a matcher. Matchers with the same patterns
// and expression share one entry, keeping the position of the first
// registration; the new extractors run after the ones already bound.
func (r *Registry) Register(m *Matcher, extractors ...Extractor) error {
	if m == nil {
		return fmt.Errorf("%w: nil matcher", ErrInvalidPattern)
	}
	for _, e := range extractors {
		if err := e.validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.matcher.Key() == m.Key() {
			e.extractors = append(e.extractors, extractors...)
			return nil
		}
	}
	r.entries = append(r.entries, &entry{
		matcher:    m,
		extractors: append([]Extractor(nil), extractors...),
	})
	return nil
}

// RegisterPattern compiles a matcher and registers extractors with it.
func (r *Registry) RegisterPattern(namePattern, labelPattern string, ext Extractor, opts ...MatcherOption) error {
	m, err := NewMatcher(namePattern, labelPattern, opts...)
	if err != nil {
		return err
	}
	return r.Register(m, ext)
}

// Len returns the number of distinct matchers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Matchers returns the registered matchers in order.
func (r *Registry) Matchers() []*Matcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Matcher, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.matcher
	}
	return out
}

// applicable returns the extractors matching a node, in order.
func (r *Registry) applicable(name, label string) ([]Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Extractor
	for _, e := range r.entries {
		ok, err := e.matcher.Match(name, label)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e.extractors...)
		}
	}
	return out, nil
}

// ResolveFromInventory merges the variables of every extractor matching
// (name, label), computed from the inventory object's vars.
func (r *Registry) ResolveFromInventory(name, label string, vars map[string]any) (map[string]any, error) {
	extractors, err := r.applicable(name, label)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any)
	for _, ext := range extractors {
		kv, err := ext.FromInventory(vars)
		if err != nil {
			return nil, fmt.Errorf("extractor %q on %s:%s: %w", ext.Name, label, name, err)
		}
		for k, v := range kv {
			merged[k] = v
		}
	}
	return merged, nil
}

// ResolveFromGraph merges the variables of every extractor matching the
// node, read from the graph. The reserved name key never appears in the
// result.
func (r *Registry) ResolveFromGraph(ctx context.Context, ref graph.NodeRef, reader *Reader) (map[string]any, error) {
	extractors, err := r.applicable(ref.Name, ref.Label)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any)
	for _, ext := range extractors {
		kv, err := ext.FromGraph(ctx, ref, reader)
		if err != nil {
			return nil, fmt.Errorf("extractor %q on %s:%s: %w", ext.Name, ref.Label, ref.Name, err)
		}
		for k, v := range kv {
			merged[k] = v
		}
	}
	delete(merged, graph.ReservedName)
	return merged, nil
}
