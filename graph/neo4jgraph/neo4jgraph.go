// Package neo4jgraph adapts the Neo4j Go driver to graph.Session.
package neo4jgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// Config holds connection settings for a Neo4j server.
type Config struct {
	// URI is the bolt or neo4j URI, e.g. "bolt://localhost:7687".
	URI string

	// User and Password are used for basic auth. An empty User disables
	// authentication.
	User     string
	Password string

	// Database selects the database. Empty means the server default.
	Database string

	// ConnectTimeout bounds the connectivity check in Open. Zero means 10s.
	ConnectTimeout time.Duration

	Logger *slog.Logger
}

// Driver owns a Neo4j driver and hands out sessions.
type Driver struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Open creates a driver and verifies the server is reachable.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}

	auth := neo4j.NoAuth()
	if cfg.User != "" {
		auth = neo4j.BasicAuth(cfg.User, cfg.Password, "")
	}

	d, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.VerifyConnectivity(verifyCtx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.URI, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{driver: d, database: cfg.Database, logger: logger}, nil
}

// Session opens a session. write selects the access mode; reads may be
// routed to followers in a cluster.
func (d *Driver) Session(ctx context.Context, write bool) *Session {
	mode := neo4j.AccessModeRead
	if write {
		mode = neo4j.AccessModeWrite
	}
	return &Session{
		session: d.driver.NewSession(ctx, neo4j.SessionConfig{
			AccessMode:   mode,
			DatabaseName: d.database,
		}),
		logger: d.logger,
	}
}

// Close closes the underlying driver and all of its connections.
func (d *Driver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// Session runs catalogue statements in auto-commit transactions.
type Session struct {
	session neo4j.SessionWithContext
	logger  *slog.Logger
}

var _ graph.Session = (*Session)(nil)

// Run implements graph.Session.
func (s *Session) Run(ctx context.Context, stmt graph.Statement) (graph.Cursor, error) {
	s.logger.DebugContext(ctx, "running statement",
		"kind", string(stmt.Kind),
		"cypher", stmt.Cypher,
	)

	result, err := s.session.Run(ctx, stmt.Cypher, stmt.Params)
	if err != nil {
		return nil, err
	}
	return &cursor{result: result}, nil
}

// Close closes the session.
func (s *Session) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

type cursor struct {
	result  neo4j.ResultWithContext
	current graph.Record
}

func (c *cursor) Next(ctx context.Context) bool {
	if !c.result.Next(ctx) {
		c.current = nil
		return false
	}
	c.current = toRecord(c.result.Record())
	return true
}

func (c *cursor) Record() graph.Record {
	return c.current
}

func (c *cursor) Peek(ctx context.Context) (graph.Record, bool) {
	var rec *neo4j.Record
	if !c.result.PeekRecord(ctx, &rec) {
		return nil, false
	}
	return toRecord(rec), true
}

func (c *cursor) Err() error {
	return c.result.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	_, err := c.result.Consume(ctx)
	return err
}

func toRecord(rec *neo4j.Record) graph.Record {
	if rec == nil {
		return nil
	}
	out := make(graph.Record, len(rec.Keys))
	for i, k := range rec.Keys {
		if i < len(rec.Values) {
			out[k] = rec.Values[i]
		}
	}
	return out
}
