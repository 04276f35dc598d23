package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntoofu/neo4j-ansible-inventory/config"
	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/graph/graphtest"
	"github.com/ntoofu/neo4j-ansible-inventory/health"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// memGraph adapts graphtest.Memory to Graph.
type memGraph struct {
	*graphtest.Memory
}

func (memGraph) Close(context.Context) error { return nil }

type harness struct {
	app    *App
	mem    *graphtest.Memory
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	config string

	// opened records every connection made, with its settings
	opened []config.Neo4jConfig
}

func newHarness(t *testing.T, configYAML string) *harness {
	t.Helper()
	t.Setenv(config.PasswordEnv, "")

	h := &harness{
		mem:    graphtest.NewMemory(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		config: filepath.Join(t.TempDir(), "config.yml"),
	}
	require.NoError(t, os.WriteFile(h.config, []byte(configYAML), 0o600))

	h.app = &App{
		Stdin:      &bytes.Buffer{},
		Stdout:     h.stdout,
		Stderr:     h.stderr,
		IsTerminal: func() bool { return false },
		OpenGraph: func(_ context.Context, cfg config.Neo4jConfig, _ *slog.Logger, _ bool) (Graph, error) {
			h.opened = append(h.opened, cfg)
			return memGraph{h.mem}, nil
		},
		OpenCache: OpenRedis,
		FromAnsible: func(context.Context, source.CommandConfig) (*source.Inventory, error) {
			return nil, errors.New("ansible-inventory not installed")
		},
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	cmd := NewRootCommand(h.app)
	cmd.SetArgs(append([]string{"-c", h.config}, args...))
	return cmd.ExecuteContext(context.Background())
}

func (h *harness) store(t *testing.T) {
	t.Helper()
	require.NoError(t, h.run(t, "store", "-i", filepath.Join("testdata", "inventory.yml")))
}

const quietConfig = "log:\n  level: error\n"

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(newHarness(t, quietConfig).app)
	require.NotNil(t, cmd)
	assert.Equal(t, "neo4j-inventory", cmd.Use)
	assert.Contains(t, cmd.Long, "--list")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(newHarness(t, quietConfig).app)

	for _, name := range []string{"store", "list", "host", "check"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(newHarness(t, quietConfig).app)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("no-cache"))
	require.NotNil(t, cmd.Flags().Lookup("list"))
	require.NotNil(t, cmd.Flags().Lookup("host"))

	storeCmd, _, err := cmd.Find([]string{"store"})
	require.NoError(t, err)
	inventoryFlag := storeCmd.Flags().Lookup("inventory")
	require.NotNil(t, inventoryFlag)
	assert.Equal(t, "i", inventoryFlag.Shorthand)
}

func TestStoreAndList_Golden(t *testing.T) {
	h := newHarness(t, quietConfig)
	h.store(t)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	require.NoError(t, h.run(t, "--list"))
	g.Assert(t, "list", h.stdout.Bytes())

	require.NoError(t, h.run(t, "list"))
	g.Assert(t, "list", h.stdout.Bytes())

	require.NoError(t, h.run(t, "--host", "h1"))
	g.Assert(t, "host_h1", h.stdout.Bytes())

	require.NoError(t, h.run(t, "host", "h1"))
	g.Assert(t, "host_h1", h.stdout.Bytes())
}

func TestStore_Report(t *testing.T) {
	h := newHarness(t, quietConfig)
	require.NoError(t, h.run(t, "store", "-i", filepath.Join("testdata", "inventory.yml")))

	var report struct {
		Nodes         int `json:"nodes"`
		Containment   int `json:"containment"`
		Bags          int `json:"bags"`
		VariableEdges int `json:"variable_edges"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &report))

	// groups all, db, ungrouped, web and hosts bastion, d1, h1, h2
	assert.Equal(t, 8, report.Nodes)
	// all->db, all->ungrouped, all->web, db->d1, ungrouped->bastion, web->h1, web->h2
	assert.Equal(t, 7, report.Containment)
	assert.Equal(t, 3, report.Bags)
	assert.Equal(t, 3, report.VariableEdges)
	require.Len(t, h.opened, 1)
}

func TestStore_FromAnsible(t *testing.T) {
	h := newHarness(t, quietConfig)

	var got source.CommandConfig
	h.app.FromAnsible = func(_ context.Context, cfg source.CommandConfig) (*source.Inventory, error) {
		got = cfg
		inv := source.New()
		inv.EnsureGroup(source.GroupAll).AddHost("h1")
		return inv, nil
	}

	require.NoError(t, h.run(t, "store",
		"--ansible-inventory", "inventories/prod",
		"--vault-password-file", "vault.txt",
		"--playbook-dir", "playbooks",
	))
	assert.Equal(t, source.CommandConfig{
		Command:           source.DefaultInventoryCommand,
		Inventory:         "inventories/prod",
		VaultPasswordFile: "vault.txt",
		PlaybookDir:       "playbooks",
	}, got)

	require.NoError(t, h.run(t, "--host", "h1"))
	assert.Equal(t, "{}\n", h.stdout.String())
}

func TestStore_FlagErrors(t *testing.T) {
	h := newHarness(t, quietConfig)

	assert.Error(t, h.run(t, "store"), "an inventory source is required")
	assert.Error(t, h.run(t, "store", "-i", "a.yml", "--ansible-inventory", "b"))
	assert.Empty(t, h.opened)

	err := h.run(t, "store", "--ansible-inventory", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ansible-inventory not installed")
}

func TestRoot_ListAndHostConflict(t *testing.T) {
	h := newHarness(t, quietConfig)
	err := h.run(t, "--list", "--host", "h1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestHost_NotFound(t *testing.T) {
	h := newHarness(t, quietConfig)
	h.store(t)

	code := Execute(context.Background(), h.app, []string{"-c", h.config, "--host", "nope"})
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "host not found")
}

func TestList_NothingStored(t *testing.T) {
	h := newHarness(t, quietConfig)
	err := h.run(t, "--list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "representing node not found")
}

func TestConfig_Errors(t *testing.T) {
	h := newHarness(t, "definition:\n  vars_label: SCRIPT\n")
	err := h.run(t, "--list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definition")
	assert.Empty(t, h.opened)
}

func TestPassword(t *testing.T) {
	const cfg = quietConfig + "neo4j:\n  user: neo4j\n"

	t.Run("not a terminal", func(t *testing.T) {
		h := newHarness(t, cfg)
		err := h.run(t, "--list")
		require.Error(t, err)
		assert.Contains(t, err.Error(), config.PasswordEnv)
		assert.Empty(t, h.opened)
	})

	t.Run("prompted", func(t *testing.T) {
		h := newHarness(t, cfg)
		h.app.IsTerminal = func() bool { return true }
		h.app.ReadPassword = func() ([]byte, error) { return []byte("s3cret"), nil }

		h.store(t)
		require.Len(t, h.opened, 1)
		assert.Equal(t, "s3cret", h.opened[0].Password)
		assert.Contains(t, h.stderr.String(), "Enter Neo4j password")
	})

	t.Run("from environment", func(t *testing.T) {
		h := newHarness(t, cfg)
		t.Setenv(config.PasswordEnv, "from-env")

		h.store(t)
		require.Len(t, h.opened, 1)
		assert.Equal(t, "from-env", h.opened[0].Password)
	})
}

func TestCache(t *testing.T) {
	mr := miniredis.RunT(t)
	h := newHarness(t, quietConfig+fmt.Sprintf("cache:\n  url: redis://%s\n  prefix: test\n", mr.Addr()))
	h.store(t)
	opens := len(h.opened)

	require.NoError(t, h.run(t, "--list"))
	first := h.stdout.String()
	assert.Equal(t, opens+1, len(h.opened))
	assert.True(t, mr.Exists("test:SCRIPT:ansible:list"))

	require.NoError(t, h.run(t, "--list"))
	assert.Equal(t, first, h.stdout.String())
	assert.Equal(t, opens+1, len(h.opened), "served from cache")

	require.NoError(t, h.run(t, "--host", "h1"))
	assert.True(t, mr.Exists("test:SCRIPT:ansible:host:h1"))

	require.NoError(t, h.run(t, "--no-cache", "--list"))
	assert.Equal(t, opens+3, len(h.opened), "--no-cache reads the graph")

	h.store(t)
	assert.False(t, mr.Exists("test:SCRIPT:ansible:list"), "store invalidates")
	assert.False(t, mr.Exists("test:SCRIPT:ansible:host:h1"))
}

func TestCache_InvalidatedByFailedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	h := newHarness(t, quietConfig+fmt.Sprintf("cache:\n  url: redis://%s\n  prefix: test\n", mr.Addr()))
	h.store(t)

	require.NoError(t, h.run(t, "--list"))
	require.True(t, mr.Exists("test:SCRIPT:ansible:list"))

	h.mem.FailOn(graph.KindCreateRelationship, errors.New("connection reset"))
	err := h.run(t, "store", "-i", filepath.Join("testdata", "inventory.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, mr.Exists("test:SCRIPT:ansible:list"), "the old listing is not served after a partial store")
}

func TestCache_Unavailable(t *testing.T) {
	h := newHarness(t, "log:\n  level: warn\ncache:\n  url: redis://localhost:99999\n")
	h.store(t)

	require.NoError(t, h.run(t, "--list"), "an unreachable cache is not fatal")
	assert.Contains(t, h.stderr.String(), "listing cache unavailable")
}

func TestCheck(t *testing.T) {
	type report struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status  string         `json:"status"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"checks"`
	}
	parse := func(t *testing.T, h *harness) report {
		t.Helper()
		var r report
		require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &r))
		return r
	}

	t.Run("nothing stored", func(t *testing.T) {
		h := newHarness(t, quietConfig)
		require.NoError(t, h.run(t, "check", "--ansible-command", "sh"))

		r := parse(t, h)
		assert.Equal(t, "degraded", r.Status)
		assert.Equal(t, "degraded", r.Checks["neo4j"].Status)
		assert.Equal(t, "healthy", r.Checks["config"].Status)
		assert.Equal(t, "healthy", r.Checks["ansible-inventory"].Status)
		assert.NotContains(t, r.Checks, "cache")

		def := r.Checks["definition"]
		assert.Equal(t, "healthy", def.Status)
		assert.Contains(t, def.Message, `SCRIPT{name:"ansible"}`)
		assert.Equal(t, []any{"name=~.* label=~.*"}, def.Details["vars_rules"])
	})

	t.Run("configured rules are listed in order", func(t *testing.T) {
		h := newHarness(t, quietConfig+`vars_rules:
  - label: ANSIBLE_GROUP
  - label: ANSIBLE_HOST
    when: 'name.startsWith("db")'
    extractor: select
    keys: [ip]
`)
		require.NoError(t, h.run(t, "check", "--ansible-command", "sh"))
		assert.Equal(t, []any{
			"name=~.* label=~ANSIBLE_GROUP",
			`name=~.* label=~ANSIBLE_HOST when name.startsWith("db")`,
		}, parse(t, h).Checks["definition"].Details["vars_rules"])
	})

	t.Run("healthy with cache", func(t *testing.T) {
		mr := miniredis.RunT(t)
		h := newHarness(t, quietConfig+fmt.Sprintf("cache:\n  url: redis://%s\n", mr.Addr()))
		h.store(t)

		require.NoError(t, h.run(t, "check", "--ansible-command", "sh"))
		r := parse(t, h)
		assert.Equal(t, "healthy", r.Status)
		assert.Equal(t, "healthy", r.Checks["cache"].Status)
	})

	t.Run("missing ansible-inventory only degrades", func(t *testing.T) {
		h := newHarness(t, quietConfig)
		h.store(t)

		require.NoError(t, h.run(t, "check", "--ansible-command", "no-such-ansible-inventory-binary"))
		r := parse(t, h)
		assert.Equal(t, "degraded", r.Status)
		assert.Equal(t, "degraded", r.Checks["ansible-inventory"].Status)
	})

	t.Run("graph unreachable", func(t *testing.T) {
		h := newHarness(t, quietConfig)
		h.app.OpenGraph = func(context.Context, config.Neo4jConfig, *slog.Logger, bool) (Graph, error) {
			return nil, errors.New("connection refused")
		}

		err := h.run(t, "check", "--ansible-command", "sh")
		require.Error(t, err)
		assert.ErrorIs(t, err, health.ErrUnhealthy)
		assert.Equal(t, "unhealthy", parse(t, h).Checks["neo4j"].Status)
	})
}
