package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	ansiblegraph "github.com/ntoofu/neo4j-ansible-inventory"
	"github.com/ntoofu/neo4j-ansible-inventory/cache"
	"github.com/ntoofu/neo4j-ansible-inventory/config"
	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/graph/neo4jgraph"
)

// Graph is a session that owns its connection.
type Graph interface {
	graph.Session
	Close(ctx context.Context) error
}

// GraphOpener connects to the graph. write selects the session access mode.
type GraphOpener func(ctx context.Context, cfg config.Neo4jConfig, logger *slog.Logger, write bool) (Graph, error)

// CacheOpener connects to the listing cache.
type CacheOpener func(cfg *config.CacheConfig) (cache.Cache, error)

// OpenNeo4j is the GraphOpener used outside tests.
func OpenNeo4j(ctx context.Context, cfg config.Neo4jConfig, logger *slog.Logger, write bool) (Graph, error) {
	d, err := neo4jgraph.Open(ctx, neo4jgraph.Config{
		URI:            cfg.GetURI(),
		User:           cfg.User,
		Password:       cfg.Password,
		Database:       cfg.Database,
		ConnectTimeout: cfg.GetConnectTimeout(),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return &neo4jGraph{Session: d.Session(ctx, write), driver: d}, nil
}

type neo4jGraph struct {
	*neo4jgraph.Session
	driver *neo4jgraph.Driver
}

func (g *neo4jGraph) Close(ctx context.Context) error {
	return errors.Join(g.Session.Close(ctx), g.driver.Close(ctx))
}

// OpenRedis is the CacheOpener used outside tests.
func OpenRedis(cfg *config.CacheConfig) (cache.Cache, error) {
	return cache.NewRedis(cache.RedisOptions{URL: cfg.URL})
}

// env is what one command invocation works with.
type env struct {
	app    *App
	opts   *RootOptions
	cfg    *config.Config
	def    *ansiblegraph.Definition
	logger *slog.Logger
}

func newEnv(app *App, opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	def, err := cfg.BuildDefinition()
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	return &env{
		app:    app,
		opts:   opts,
		cfg:    cfg,
		def:    def,
		logger: newLogger(app.Stderr, cfg.Log),
	}, nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.GetLevel()}
	if cfg.GetFormat() == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openGraph connects to Neo4j, prompting for a password when a user is
// configured without one and stdin is a terminal.
func (e *env) openGraph(ctx context.Context, write bool) (Graph, error) {
	n := e.cfg.Neo4j
	if n.NeedsPassword() {
		if e.app.IsTerminal == nil || !e.app.IsTerminal() {
			return nil, fmt.Errorf("neo4j.user %q has no password: set %s or run interactively", n.User, config.PasswordEnv)
		}
		fmt.Fprint(e.app.Stderr, "Enter Neo4j password: ")
		pw, err := e.app.ReadPassword()
		fmt.Fprintln(e.app.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		n.Password = string(pw)
	}
	return e.app.OpenGraph(ctx, n, e.logger, write)
}

func (e *env) closeGraph(ctx context.Context, g Graph) {
	if err := g.Close(ctx); err != nil {
		e.logger.Warn("failed to close resource",
			"resource", "neo4j session",
			"error", err)
	}
}

// openCache returns nil when caching is off or Redis is unreachable. The
// cache is an optimization, so connection problems are only logged.
func (e *env) openCache() cache.Cache {
	if e.opts.NoCache || !e.cfg.Cache.Enabled() || e.app.OpenCache == nil {
		return nil
	}
	c, err := e.app.OpenCache(e.cfg.Cache)
	if err != nil {
		e.logger.Warn("listing cache unavailable", "error", err)
		return nil
	}
	return c
}

// cached returns the document under key, rendering and storing it on a
// miss.
func (e *env) cached(ctx context.Context, key string, render func() ([]byte, error)) ([]byte, error) {
	c := e.openCache()
	if c == nil {
		return render()
	}
	defer ansiblegraph.CloseWithLog(c, e.logger, "cache")

	data, ok, err := c.Get(ctx, key)
	switch {
	case err != nil:
		e.logger.Warn("cache read failed", "key", key, "error", err)
	case ok:
		e.logger.Debug("cache hit", "key", key)
		return data, nil
	}

	data, err = render()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, data, e.cfg.Cache.GetTTL()); err != nil {
		e.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return data, nil
}

func (e *env) invalidate(ctx context.Context) {
	c := e.openCache()
	if c == nil {
		return
	}
	defer ansiblegraph.CloseWithLog(c, e.logger, "cache")

	ns := cache.Namespace(e.cfg.Cache.GetPrefix(), e.def)
	if err := c.Invalidate(ctx, ns); err != nil {
		e.logger.Warn("cache invalidation failed", "namespace", ns, "error", err)
	}
}

func (e *env) reconstructor() (*ansiblegraph.Reconstructor, error) {
	return ansiblegraph.NewReconstructor(e.def, ansiblegraph.WithLogger(e.logger))
}

func writeLine(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
