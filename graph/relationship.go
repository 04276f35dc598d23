package graph

import "fmt"

// Relationship is a directed, typed edge between two stored nodes.
type Relationship struct {
	// FromID is the store id of the source node.
	FromID int64 `json:"from_id"`

	// ToID is the store id of the target node.
	ToID int64 `json:"to_id"`

	// Type is the relationship type, used verbatim as a schema identifier.
	Type string `json:"type"`

	// Properties contains optional relationship properties.
	Properties map[string]any `json:"properties,omitempty"`
}

// NewRelationship creates a Relationship with no properties.
func NewRelationship(fromID, toID int64, relType string) *Relationship {
	return &Relationship{
		FromID:     fromID,
		ToID:       toID,
		Type:       relType,
		Properties: make(map[string]any),
	}
}

// WithProperty adds a property and returns the relationship for chaining.
func (r *Relationship) WithProperty(key string, value any) *Relationship {
	if r.Properties == nil {
		r.Properties = make(map[string]any)
	}
	r.Properties[key] = value
	return r
}

// WithIndex marks the relationship as element index of a list-typed variable.
func (r *Relationship) WithIndex(index int) *Relationship {
	return r.WithProperty(ReservedIndex, int64(index))
}

// Validate checks that the relationship type is a usable schema identifier.
func (r *Relationship) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("relationship type cannot be empty")
	}
	if r.FromID < 0 || r.ToID < 0 {
		return fmt.Errorf("relationship %s has negative endpoint id", r.Type)
	}
	return nil
}
