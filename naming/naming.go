// Package naming translates node identity between the inventory and the
// graph.
//
// A Rule maps an inventory host or group, or a graph node reference, to an
// Identity exposing the four views the mapping engine needs: the inventory
// name, whether the object is a host, the graph name and the graph label.
// Traversal code only ever talks to a Rule, so the naming and labelling
// policy can change without touching it.
package naming

import (
	"errors"
	"fmt"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// Default graph labels for inventory objects.
const (
	DefaultHostLabel  = "ANSIBLE_HOST"
	DefaultGroupLabel = "ANSIBLE_GROUP"
)

// ErrUnsupportedObjectKind is returned when a Rule is given an object that
// is neither a host, a group nor a graph node reference.
var ErrUnsupportedObjectKind = errors.New("unsupported object kind")

// Kind is the domain type of an identified object.
type Kind string

const (
	KindHost  Kind = "HOST"
	KindGroup Kind = "GROUP"
)

// Identity is the canonical identity of one object in both domains.
type Identity interface {
	InventoryName() string
	IsHost() bool
	GraphName() string
	GraphLabel() string
}

// Rule identifies inventory-side and graph-side objects. Implementations
// must be pure.
type Rule interface {
	Identify(obj any) (Identity, error)
}

// identity is the Identity produced by the built-in rules.
type identity struct {
	kind  Kind
	name  string
	label string
}

func (i identity) InventoryName() string { return i.name }
func (i identity) IsHost() bool          { return i.kind == KindHost }
func (i identity) GraphName() string     { return i.name }
func (i identity) GraphLabel() string    { return i.label }

// Kind returns the domain type.
func (i identity) Kind() Kind { return i.kind }

// String implements fmt.Stringer.
func (i identity) String() string {
	return fmt.Sprintf("%s(%s:%s)", i.kind, i.label, i.name)
}

// LabeledRule names objects by identity and labels inventory-origin objects
// with HostLabel or GroupLabel. Graph-origin objects keep their own label;
// they are hosts when that label equals HostLabel.
type LabeledRule struct {
	HostLabel  string
	GroupLabel string
}

// DefaultRule returns the rule using ANSIBLE_HOST and ANSIBLE_GROUP.
func DefaultRule() LabeledRule {
	return LabeledRule{HostLabel: DefaultHostLabel, GroupLabel: DefaultGroupLabel}
}

// Identify implements Rule.
func (r LabeledRule) Identify(obj any) (Identity, error) {
	switch o := obj.(type) {
	case *source.Host:
		if o == nil {
			break
		}
		return identity{kind: KindHost, name: o.Name, label: r.HostLabel}, nil
	case source.Host:
		return identity{kind: KindHost, name: o.Name, label: r.HostLabel}, nil
	case *source.Group:
		if o == nil {
			break
		}
		return identity{kind: KindGroup, name: o.Name, label: r.GroupLabel}, nil
	case source.Group:
		return identity{kind: KindGroup, name: o.Name, label: r.GroupLabel}, nil
	case *graph.NodeRef:
		if o == nil {
			break
		}
		return r.fromGraph(*o), nil
	case graph.NodeRef:
		return r.fromGraph(o), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedObjectKind, obj)
}

func (r LabeledRule) fromGraph(ref graph.NodeRef) identity {
	kind := KindGroup
	if ref.Label == r.HostLabel {
		kind = KindHost
	}
	return identity{kind: kind, name: ref.Name, label: ref.Label}
}

// KindOf returns the domain type of an Identity produced by any rule.
func KindOf(id Identity) Kind {
	if id.IsHost() {
		return KindHost
	}
	return KindGroup
}
