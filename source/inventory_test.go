package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventory_EnsureIsIdempotent(t *testing.T) {
	inv := New()
	g := inv.EnsureGroup("web")
	g.AddHost("h1")
	g.AddHost("h1")
	g.AddChild("front")
	g.AddChild("front")

	assert.Same(t, g, inv.EnsureGroup("web"))
	assert.Equal(t, []string{"h1"}, g.Hosts)
	assert.Equal(t, []string{"front"}, g.Children)

	h := inv.EnsureHost("h1")
	assert.Same(t, h, inv.EnsureHost("h1"))
}

func TestInventory_Validate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Inventory
		wantErr string
	}{
		{
			name: "valid",
			build: func() *Inventory {
				inv := New()
				inv.EnsureHost("h1")
				inv.EnsureGroup("web").AddHost("h1")
				return inv
			},
		},
		{
			name: "unknown host",
			build: func() *Inventory {
				inv := New()
				inv.EnsureGroup("web").AddHost("h1")
				return inv
			},
			wantErr: `unknown host "h1"`,
		},
		{
			name: "unknown child",
			build: func() *Inventory {
				inv := New()
				inv.EnsureGroup("web").AddChild("front")
				return inv
			},
			wantErr: `unknown child group "front"`,
		},
		{
			name: "host and group share a name",
			build: func() *Inventory {
				inv := New()
				inv.EnsureHost("web")
				inv.EnsureGroup("web")
				return inv
			},
			wantErr: "both a host and a group",
		},
		{
			name: "reserved group name",
			build: func() *Inventory {
				inv := New()
				inv.EnsureHost("h1")
				inv.EnsureGroup("_meta").AddHost("h1")
				return inv
			},
			wantErr: `"_meta" is reserved`,
		},
		{
			name: "cycle",
			build: func() *Inventory {
				inv := New()
				inv.EnsureGroup("a").AddChild("b")
				inv.EnsureGroup("b").AddChild("a")
				return inv
			},
			wantErr: "cyclic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInventory)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInventory_ValidateReportsEveryProblem(t *testing.T) {
	inv := New()
	g := inv.EnsureGroup("web")
	g.AddHost("h1")
	g.AddHost("h2")

	err := inv.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"h1"`)
	assert.Contains(t, err.Error(), `"h2"`)
}

func TestInventory_Normalize(t *testing.T) {
	inv := New()
	inv.EnsureHost("h1")
	inv.EnsureHost("loose")
	inv.EnsureGroup("web").AddHost("h1")
	inv.EnsureGroup(GroupAll).AddHost("loose")

	inv.normalize()

	all, ok := inv.Group(GroupAll)
	require.True(t, ok)
	assert.Equal(t, []string{GroupUngrouped, "web"}, all.Children)
	assert.Empty(t, all.Hosts)

	ungrouped, ok := inv.Group(GroupUngrouped)
	require.True(t, ok)
	assert.Equal(t, []string{"loose"}, ungrouped.Hosts)
	require.NoError(t, inv.Validate())
}
