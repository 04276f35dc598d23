package source

import (
	"encoding/json"
	"fmt"
	"io"
)

// metaKey is the reserved top-level key of the dynamic inventory format.
const metaKey = "_meta"

type jsonMeta struct {
	HostVars map[string]map[string]any `json:"hostvars"`
}

type jsonGroup struct {
	Hosts    []string       `json:"hosts"`
	Vars     map[string]any `json:"vars"`
	Children []string       `json:"children"`
}

// LoadJSON reads an inventory in the dynamic inventory format printed by
// `ansible-inventory --list` and by this module's listing. A group may also
// be given in the legacy form, a bare list of host names.
func LoadJSON(r io.Reader) (*Inventory, error) {
	var top map[string]json.RawMessage
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("failed to parse JSON inventory: %w", err)
	}

	inv := New()

	if raw, ok := top[metaKey]; ok {
		var meta jsonMeta
		if err := decodeJSON(raw, &meta); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", metaKey, err)
		}
		for _, name := range sortedKeys(meta.HostVars) {
			h := inv.EnsureHost(name)
			h.Vars = mergeVars(h.Vars, meta.HostVars[name])
		}
	}

	for _, name := range sortedKeys(top) {
		if name == metaKey {
			continue
		}
		def, err := parseJSONGroup(top[name])
		if err != nil {
			return nil, fmt.Errorf("failed to parse group %q: %w", name, err)
		}
		// an empty legacy "ungrouped": [] is only a placeholder
		if name == GroupUngrouped && len(def.Hosts) == 0 && len(def.Children) == 0 && len(def.Vars) == 0 {
			continue
		}

		g := inv.EnsureGroup(name)
		g.Vars = mergeVars(g.Vars, def.Vars)
		for _, h := range def.Hosts {
			inv.EnsureHost(h)
			g.AddHost(h)
		}
		for _, c := range def.Children {
			inv.EnsureGroup(c)
			g.AddChild(c)
		}
	}

	inv.normalize()

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

func parseJSONGroup(raw json.RawMessage) (jsonGroup, error) {
	var hosts []string
	if err := decodeJSON(raw, &hosts); err == nil {
		return jsonGroup{Hosts: hosts}, nil
	}
	var g jsonGroup
	if err := decodeJSON(raw, &g); err != nil {
		return jsonGroup{}, err
	}
	return g, nil
}

// decodeJSON decodes with UseNumber and then converts numbers to int64 or
// float64 so integer vars do not come back as floats.
func decodeJSON(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytesReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	fixNumbers(v)
	return nil
}

func fixNumbers(v any) {
	switch val := v.(type) {
	case *jsonMeta:
		for _, vars := range val.HostVars {
			fixMap(vars)
		}
	case *jsonGroup:
		fixMap(val.Vars)
	}
}

func fixMap(m map[string]any) {
	for k, v := range m {
		m[k] = fixValue(v)
	}
}

func fixValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		fixMap(val)
		return val
	case []any:
		for i, e := range val {
			val[i] = fixValue(e)
		}
		return val
	default:
		return v
	}
}
