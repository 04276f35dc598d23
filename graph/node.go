package graph

import (
	"errors"
)

// ReservedName is the property every inventory node carries holding its name.
// It is never part of a node's variable mapping.
const ReservedName = "name"

// ReservedIndex is the relationship property holding the position of a
// list element on a variable edge.
const ReservedIndex = "index"

// Node is a graph node produced or consumed by the mapping engine.
type Node struct {
	// ID is assigned by the graph store. Only meaningful when HasID is true.
	ID    int64 `json:"id,omitempty"`
	HasID bool  `json:"-"`

	// CorrelationID identifies the node inside one materialization pass,
	// before the store has assigned ID.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Label is the single node label (node-type tag).
	Label string `json:"label"`

	// Name is the node's name, persisted under ReservedName.
	Name string `json:"name"`

	// Properties holds scalar properties other than the name.
	Properties map[string]any `json:"properties,omitempty"`
}

// NewNode creates a Node with an initialized property map.
func NewNode(label, name string) *Node {
	return &Node{
		Label:      label,
		Name:       name,
		Properties: make(map[string]any),
	}
}

// WithCorrelationID sets the pass-local correlation id and returns the node
// for chaining.
func (n *Node) WithCorrelationID(id string) *Node {
	n.CorrelationID = id
	return n
}

// WithID records the store-assigned id.
func (n *Node) WithID(id int64) *Node {
	n.ID = id
	n.HasID = true
	return n
}

// WithProperty sets a single property, initializing the map if needed.
func (n *Node) WithProperty(key string, value any) *Node {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = value
	return n
}

// Ref returns the label/name pair identifying the node on the graph side.
func (n *Node) Ref() NodeRef {
	return NodeRef{ID: n.ID, Label: n.Label, Name: n.Name}
}

// Validate checks that the node has a label and a name.
func (n *Node) Validate() error {
	if n.Label == "" {
		return errors.New("node label is required")
	}
	if n.Name == "" {
		return errors.New("node name is required")
	}
	return nil
}

// NodeRef is a graph-origin node reference as returned by match statements.
type NodeRef struct {
	ID    int64
	Label string
	Name  string
}
