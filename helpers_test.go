package ansiblegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ntoofu/neo4j-ansible-inventory/graph/graphtest"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// scenarioInventory is one group "web" with tier=front holding host h1.
func scenarioInventory() *source.Inventory {
	inv := source.New()
	web := inv.EnsureGroup("web")
	web.Vars["tier"] = "front"
	web.AddHost("h1")
	inv.EnsureHost("h1").Vars["ip"] = "10.0.0.1"
	return inv
}

func loadInventory(t *testing.T, name string) *source.Inventory {
	t.Helper()
	inv, err := source.LoadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return inv
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func debugLogger() *slog.Logger {
	if os.Getenv("ANSIBLEGRAPH_TEST_LOG") == "" {
		return quietLogger()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newMaterializer(t *testing.T, def *Definition, opts ...Option) *Materializer {
	t.Helper()
	m, err := NewMaterializer(def, append([]Option{WithLogger(debugLogger())}, opts...)...)
	require.NoError(t, err)
	return m
}

func newReconstructor(t *testing.T, def *Definition, opts ...Option) *Reconstructor {
	t.Helper()
	r, err := NewReconstructor(def, append([]Option{WithLogger(debugLogger())}, opts...)...)
	require.NoError(t, err)
	return r
}

// store writes inv into a fresh in-memory graph with the default definition.
func store(t *testing.T, inv *source.Inventory) (*graphtest.Memory, *StoreReport) {
	t.Helper()
	mem := graphtest.NewMemory()
	report, err := newMaterializer(t, DefaultDefinition()).Store(context.Background(), mem, inv)
	require.NoError(t, err)
	return mem, report
}

// expectedJSON renders what listing inv should produce.
func expectedJSON(t *testing.T, inv *source.Inventory) string {
	t.Helper()
	l := NewListing()
	for name, g := range inv.Groups {
		l.Groups[name] = &GroupEntry{Vars: g.Vars, Hosts: g.Hosts, Children: g.Children}
	}
	for name, h := range inv.Hosts {
		l.HostVars[name] = h.Vars
	}
	b, err := json.Marshal(l)
	require.NoError(t, err)
	return string(b)
}

func listingJSON(t *testing.T, l *Listing) string {
	t.Helper()
	b, err := json.Marshal(l)
	require.NoError(t, err)
	return string(b)
}
