package ansiblegraph

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/naming"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
	"github.com/ntoofu/neo4j-ansible-inventory/varrule"
)

// Defaults for the persisted schema.
const (
	DefaultRepresentingLabel = "SCRIPT"
	DefaultRepresentingName  = "ansible"
	DefaultOwnershipType     = "USE"
	DefaultContainmentType   = "HAS"
	DefaultBagLabel          = "ANSIBLE_VARS"
)

// Definition binds one logical inventory to its graph schema. Labels and
// relationship types are persisted verbatim; changing them on an existing
// graph orphans what was stored under the old names.
type Definition struct {
	// RepresentingLabel and RepresentingName locate the singleton node every
	// inventory node is owned by.
	RepresentingLabel string
	RepresentingName  string

	// OwnershipType is the relationship type from each inventory node to the
	// representing node.
	OwnershipType string

	// ContainmentType is the relationship type from a group to each child
	// group and member host.
	ContainmentType string

	// BagLabel labels property-bag nodes holding nested variables.
	BagLabel string

	// Naming maps inventory objects to graph labels and names.
	Naming naming.Rule

	// Vars selects the variables written and read for each node.
	Vars *varrule.Registry

	// MaxPathDepth bounds the containment path searched by HostVars.
	// Zero means unbounded.
	MaxPathDepth int
}

// DefaultDefinition returns the standard schema with every variable carried.
func DefaultDefinition() *Definition {
	vars := varrule.NewRegistry()
	// cannot fail: constant patterns and a complete extractor
	_ = vars.Register(varrule.MustMatcher(".*", ".*"), varrule.AllVariables())

	return &Definition{
		RepresentingLabel: DefaultRepresentingLabel,
		RepresentingName:  DefaultRepresentingName,
		OwnershipType:     DefaultOwnershipType,
		ContainmentType:   DefaultContainmentType,
		BagLabel:          DefaultBagLabel,
		Naming:            naming.DefaultRule(),
		Vars:              vars,
	}
}

// Validate checks that every schema identifier is usable and that the
// labels and relationship types do not collide.
func (d *Definition) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]any{ErrInvalidDefinition}, args...)...))
	}

	identifiers := []struct{ field, value string }{
		{"representing label", d.RepresentingLabel},
		{"ownership type", d.OwnershipType},
		{"containment type", d.ContainmentType},
		{"bag label", d.BagLabel},
	}
	for _, id := range identifiers {
		if !graph.ValidIdentifier(id.value) {
			add("%s %q is not a valid identifier", id.field, id.value)
		}
	}

	if d.RepresentingName == "" {
		add("representing name is required")
	}
	if d.OwnershipType == d.ContainmentType {
		add("ownership and containment types must differ, both are %q", d.OwnershipType)
	}
	if d.RepresentingLabel == d.BagLabel {
		add("representing and bag labels must differ, both are %q", d.BagLabel)
	}
	if d.MaxPathDepth < 0 {
		add("max path depth must not be negative")
	}
	if d.Vars == nil {
		add("variable rule registry is required")
	}

	if d.Naming == nil {
		add("naming rule is required")
		return result.ErrorOrNil()
	}

	hostLabel, groupLabel, err := d.inventoryLabels()
	if err != nil {
		add("naming rule: %v", err)
		return result.ErrorOrNil()
	}
	for _, l := range []string{hostLabel, groupLabel} {
		if !graph.ValidIdentifier(l) {
			add("node label %q is not a valid identifier", l)
		}
		if l == d.RepresentingLabel || l == d.BagLabel {
			add("node label %q collides with the representing or bag label", l)
		}
	}
	if hostLabel == groupLabel {
		add("host and group labels must differ, both are %q", hostLabel)
	}

	return result.ErrorOrNil()
}

// inventoryLabels asks the naming rule for the labels of hosts and groups.
func (d *Definition) inventoryLabels() (host, group string, err error) {
	h, err := d.Naming.Identify(&source.Host{Name: source.GroupAll})
	if err != nil {
		return "", "", err
	}
	g, err := d.Naming.Identify(&source.Group{Name: source.GroupAll})
	if err != nil {
		return "", "", err
	}
	return h.GraphLabel(), g.GraphLabel(), nil
}

// String summarizes the schema for logs.
func (d *Definition) String() string {
	return fmt.Sprintf("%s{name:%q} own=%s contain=%s bag=%s",
		d.RepresentingLabel, d.RepresentingName, d.OwnershipType, d.ContainmentType, d.BagLabel)
}
