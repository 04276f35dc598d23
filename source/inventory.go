// Package source holds the in-memory Ansible inventory consumed by the
// materializer and the loaders that build it from YAML inventory files,
// `ansible-inventory --list` JSON, or the ansible-inventory binary itself.
package source

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Well-known group names.
const (
	GroupAll       = "all"
	GroupUngrouped = "ungrouped"
)

// ErrInvalidInventory indicates an inventory that cannot be materialized:
// empty names, dangling references, or cyclic group nesting.
var ErrInvalidInventory = errors.New("invalid inventory")

// Host is a single inventory host.
type Host struct {
	Name string
	Vars map[string]any
}

// Group is an inventory group. Children and Hosts hold names resolved
// through the owning Inventory.
type Group struct {
	Name     string
	Vars     map[string]any
	Children []string
	Hosts    []string
}

// AddChild records a child group by name, ignoring duplicates.
func (g *Group) AddChild(name string) {
	g.Children = appendUnique(g.Children, name)
}

// AddHost records a member host by name, ignoring duplicates.
func (g *Group) AddHost(name string) {
	g.Hosts = appendUnique(g.Hosts, name)
}

// Inventory is a loaded inventory. Hosts are unique by name no matter how
// many groups reference them.
type Inventory struct {
	Groups map[string]*Group
	Hosts  map[string]*Host
}

// New returns an empty inventory.
func New() *Inventory {
	return &Inventory{
		Groups: make(map[string]*Group),
		Hosts:  make(map[string]*Host),
	}
}

// Group returns the named group.
func (inv *Inventory) Group(name string) (*Group, bool) {
	g, ok := inv.Groups[name]
	return g, ok
}

// Host returns the named host.
func (inv *Inventory) Host(name string) (*Host, bool) {
	h, ok := inv.Hosts[name]
	return h, ok
}

// EnsureGroup returns the named group, creating it if needed.
func (inv *Inventory) EnsureGroup(name string) *Group {
	if g, ok := inv.Groups[name]; ok {
		return g
	}
	g := &Group{Name: name, Vars: map[string]any{}}
	inv.Groups[name] = g
	return g
}

// EnsureHost returns the named host, creating it if needed.
func (inv *Inventory) EnsureHost(name string) *Host {
	if h, ok := inv.Hosts[name]; ok {
		return h
	}
	h := &Host{Name: name, Vars: map[string]any{}}
	inv.Hosts[name] = h
	return h
}

// GroupNames returns group names in ascending order.
func (inv *Inventory) GroupNames() []string {
	return sortedKeys(inv.Groups)
}

// HostNames returns host names in ascending order.
func (inv *Inventory) HostNames() []string {
	return sortedKeys(inv.Hosts)
}

// Validate checks that names are non-empty, that every child and host
// reference resolves, that no name is used for both a host and a group,
// that no group takes the reserved "_meta" name, and that group nesting is
// acyclic. All problems are reported together.
func (inv *Inventory) Validate() error {
	var result *multierror.Error

	for _, name := range inv.HostNames() {
		h := inv.Hosts[name]
		if name == "" || h == nil || h.Name != name {
			result = multierror.Append(result, fmt.Errorf("%w: host entry %q is malformed", ErrInvalidInventory, name))
		}
	}

	for _, name := range inv.GroupNames() {
		g := inv.Groups[name]
		if name == "" || g == nil || g.Name != name {
			result = multierror.Append(result, fmt.Errorf("%w: group entry %q is malformed", ErrInvalidInventory, name))
			continue
		}
		if name == metaKey {
			result = multierror.Append(result, fmt.Errorf("%w: group name %q is reserved for host variables", ErrInvalidInventory, name))
		}
		if _, clash := inv.Hosts[name]; clash {
			result = multierror.Append(result, fmt.Errorf("%w: %q is both a host and a group", ErrInvalidInventory, name))
		}
		for _, c := range g.Children {
			if _, ok := inv.Groups[c]; !ok {
				result = multierror.Append(result, fmt.Errorf("%w: group %q has unknown child group %q", ErrInvalidInventory, name, c))
			}
		}
		for _, h := range g.Hosts {
			if _, ok := inv.Hosts[h]; !ok {
				result = multierror.Append(result, fmt.Errorf("%w: group %q has unknown host %q", ErrInvalidInventory, name, h))
			}
		}
	}

	if cycle := inv.findCycle(); cycle != nil {
		result = multierror.Append(result, fmt.Errorf("%w: group nesting is cyclic: %v", ErrInvalidInventory, cycle))
	}

	return result.ErrorOrNil()
}

// findCycle returns the group names along one cycle, or nil.
func (inv *Inventory) findCycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(inv.Groups))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case active:
			for i, s := range stack {
				if s == name {
					cycle = append(append([]string(nil), stack[i:]...), name)
					break
				}
			}
			return true
		case done:
			return false
		}
		state[name] = active
		stack = append(stack, name)
		if g, ok := inv.Groups[name]; ok && g != nil {
			for _, c := range g.Children {
				if visit(c) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return false
	}

	for _, name := range inv.GroupNames() {
		if visit(name) {
			return cycle
		}
	}
	return nil
}

// normalize applies Ansible's implicit structure: an "all" group exists,
// every group without a parent is a child of "all", and hosts that belong to
// no group other than "all" live in "ungrouped".
func (inv *Inventory) normalize() {
	all := inv.EnsureGroup(GroupAll)

	hasParent := make(map[string]bool)
	grouped := make(map[string]bool)
	for name, g := range inv.Groups {
		for _, c := range g.Children {
			hasParent[c] = true
		}
		if name == GroupAll {
			continue
		}
		for _, h := range g.Hosts {
			grouped[h] = true
		}
	}

	for _, name := range inv.GroupNames() {
		if name != GroupAll && !hasParent[name] {
			all.AddChild(name)
		}
	}

	var loose []string
	for _, name := range inv.HostNames() {
		if !grouped[name] {
			loose = append(loose, name)
		}
	}
	all.Hosts = nil
	if len(loose) > 0 {
		ungrouped := inv.EnsureGroup(GroupUngrouped)
		for _, h := range loose {
			ungrouped.AddHost(h)
		}
		all.AddChild(GroupUngrouped)
	}
	sort.Strings(all.Children)
}

func appendUnique(list []string, name string) []string {
	for _, s := range list {
		if s == name {
			return list
		}
	}
	return append(list, name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mergeVars(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
