package ansiblegraph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListing_MarshalJSON(t *testing.T) {
	l := NewListing()
	l.Groups["web"] = &GroupEntry{Hosts: []string{"h2", "h1"}, Children: []string{"z", "a"}}
	l.Groups["a"] = &GroupEntry{Vars: map[string]any{"k": int64(1)}}
	l.Groups["z"] = &GroupEntry{}
	l.HostVars["h1"] = nil
	l.HostVars["h2"] = map[string]any{"ip": "10.0.0.2"}

	b, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"web": {"vars": {}, "hosts": ["h1", "h2"], "children": ["a", "z"]},
		"a": {"vars": {"k": 1}, "hosts": [], "children": []},
		"z": {"vars": {}, "hosts": [], "children": []},
		"ungrouped": [],
		"_meta": {"hostvars": {"h1": {}, "h2": {"ip": "10.0.0.2"}}}
	}`, string(b))

	assert.Equal(t, []string{"h2", "h1"}, l.Groups["web"].Hosts, "marshalling does not reorder in place")
}

func TestListing_MarshalJSON_KeepsStoredUngrouped(t *testing.T) {
	l := NewListing()
	l.Groups["ungrouped"] = &GroupEntry{Hosts: []string{"h1"}}
	l.HostVars["h1"] = map[string]any{}

	b, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ungrouped": {"vars": {}, "hosts": ["h1"], "children": []},
		"_meta": {"hostvars": {"h1": {}}}
	}`, string(b))
}

func TestListing_Inventory(t *testing.T) {
	l := NewListing()
	l.Groups["all"] = &GroupEntry{Children: []string{"web"}}
	l.Groups["web"] = &GroupEntry{Vars: map[string]any{"tier": "front"}, Hosts: []string{"h1"}}
	l.HostVars["h1"] = map[string]any{"ip": "10.0.0.1"}

	inv := l.Inventory()
	require.NoError(t, inv.Validate())

	web, ok := inv.Group("web")
	require.True(t, ok)
	assert.Equal(t, []string{"h1"}, web.Hosts)
	assert.Equal(t, map[string]any{"tier": "front"}, web.Vars)

	all, ok := inv.Group("all")
	require.True(t, ok)
	assert.Equal(t, []string{"web"}, all.Children)

	h1, ok := inv.Host("h1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", h1.Vars["ip"])

	l.Groups["web"].Vars["tier"] = "back"
	assert.Equal(t, "front", web.Vars["tier"], "vars are copied")
}
