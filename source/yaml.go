package source

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlGroup is one group in the Ansible YAML inventory format. Host entries
// map a host name to its vars, or to null.
type yamlGroup struct {
	Hosts    map[string]map[string]any `yaml:"hosts"`
	Vars     map[string]any            `yaml:"vars"`
	Children map[string]*yamlGroup     `yaml:"children"`
}

// LoadYAML reads an inventory in Ansible's YAML format:
//
//	all:
//	  vars: {ntp: 10.0.0.254}
//	  children:
//	    web:
//	      hosts:
//	        h1: {ip: 10.0.0.1}
//
// Groups may be repeated under several parents; their vars and members are
// merged. Host vars given in several places are merged in document order.
func LoadYAML(r io.Reader) (*Inventory, error) {
	var top map[string]*yamlGroup
	if err := yaml.NewDecoder(r).Decode(&top); err != nil {
		if errors.Is(err, io.EOF) {
			top = nil
		} else {
			return nil, fmt.Errorf("failed to parse YAML inventory: %w", err)
		}
	}

	inv := New()
	for _, name := range sortedKeys(top) {
		inv.addYAMLGroup(name, top[name])
	}
	inv.normalize()

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (inv *Inventory) addYAMLGroup(name string, def *yamlGroup) {
	g := inv.EnsureGroup(name)
	if def == nil {
		return
	}
	g.Vars = mergeVars(g.Vars, def.Vars)

	for _, hostName := range sortedKeys(def.Hosts) {
		h := inv.EnsureHost(hostName)
		h.Vars = mergeVars(h.Vars, def.Hosts[hostName])
		g.AddHost(hostName)
	}

	for _, childName := range sortedKeys(def.Children) {
		g.AddChild(childName)
		inv.addYAMLGroup(childName, def.Children[childName])
	}
}
