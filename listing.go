package ansiblegraph

import (
	"encoding/json"
	"sort"

	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// GroupEntry is one group of a Listing.
type GroupEntry struct {
	Vars     map[string]any `json:"vars"`
	Hosts    []string       `json:"hosts"`
	Children []string       `json:"children"`
}

// Listing is an inventory rebuilt from the graph, in the shape of Ansible's
// dynamic inventory output.
type Listing struct {
	Groups   map[string]*GroupEntry
	HostVars map[string]map[string]any
}

// NewListing returns an empty listing.
func NewListing() *Listing {
	return &Listing{
		Groups:   make(map[string]*GroupEntry),
		HostVars: make(map[string]map[string]any),
	}
}

// MarshalJSON renders the dynamic inventory document:
//
//	{
//	  "web": {"vars": {...}, "hosts": ["h1"], "children": []},
//	  "ungrouped": [],
//	  "_meta": {"hostvars": {"h1": {...}}}
//	}
//
// Host and child lists are sorted. An empty "ungrouped" placeholder is
// added when the graph holds no such group.
func (l *Listing) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(l.Groups)+2)

	for name, g := range l.Groups {
		doc[name] = GroupEntry{
			Vars:     nonNilMap(g.Vars),
			Hosts:    sortedCopy(g.Hosts),
			Children: sortedCopy(g.Children),
		}
	}
	if _, ok := doc[source.GroupUngrouped]; !ok {
		doc[source.GroupUngrouped] = []string{}
	}

	hostvars := make(map[string]map[string]any, len(l.HostVars))
	for name, vars := range l.HostVars {
		hostvars[name] = nonNilMap(vars)
	}
	doc["_meta"] = map[string]any{"hostvars": hostvars}

	return json.Marshal(doc)
}

// Inventory converts the listing back into an inventory, for example to
// store it under another Definition.
func (l *Listing) Inventory() *source.Inventory {
	inv := source.New()
	for name, vars := range l.HostVars {
		h := inv.EnsureHost(name)
		for k, v := range vars {
			h.Vars[k] = v
		}
	}
	for name, g := range l.Groups {
		ng := inv.EnsureGroup(name)
		for k, v := range g.Vars {
			ng.Vars[k] = v
		}
		for _, h := range sortedCopy(g.Hosts) {
			inv.EnsureHost(h)
			ng.AddHost(h)
		}
		for _, c := range sortedCopy(g.Children) {
			inv.EnsureGroup(c)
			ng.AddChild(c)
		}
	}
	return inv
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
