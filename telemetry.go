package ansiblegraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

const instrumentationName = "github.com/ntoofu/neo4j-ansible-inventory"

// instruments holds the metric instruments shared by one Materializer or
// Reconstructor. They are created once and reused for every call.
type instruments struct {
	// nodesWritten counts inventory nodes created
	nodesWritten metric.Int64Counter

	// bagsWritten counts property-bag nodes created
	bagsWritten metric.Int64Counter

	// sanitized counts variable values converted to text or dropped
	sanitized metric.Int64Counter

	// queries counts statements sent to the graph session
	queries metric.Int64Counter

	// duration records whole-call duration in milliseconds
	duration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	inst := &instruments{}
	var err error

	inst.nodesWritten, err = meter.Int64Counter(
		"ansiblegraph.nodes.written",
		metric.WithDescription("Inventory nodes written to the graph"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create nodes counter: %w", err)
	}

	inst.bagsWritten, err = meter.Int64Counter(
		"ansiblegraph.bags.written",
		metric.WithDescription("Property-bag nodes written to the graph"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create bags counter: %w", err)
	}

	inst.sanitized, err = meter.Int64Counter(
		"ansiblegraph.sanitized",
		metric.WithDescription("Variable values stored lossily or dropped"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sanitized counter: %w", err)
	}

	inst.queries, err = meter.Int64Counter(
		"ansiblegraph.queries",
		metric.WithDescription("Statements sent to the graph session"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create queries counter: %w", err)
	}

	inst.duration, err = meter.Float64Histogram(
		"ansiblegraph.pass.duration",
		metric.WithDescription("Duration of store, list and host lookups in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return inst, nil
}

// finish ends a span and records the call duration, marking both with err.
func (inst *instruments) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var e *Error
		if errors.As(err, &e) {
			span.SetAttributes(attribute.String("error.kind", e.Kind))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	inst.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		))
}

// session wraps a graph.Session so that every failure is wrapped with
// ErrGraphQueryFailed exactly once and every statement is counted.
type session struct {
	inner   graph.Session
	queries metric.Int64Counter
	count   int
}

func (inst *instruments) session(s graph.Session) *session {
	return &session{inner: s, queries: inst.queries}
}

func (s *session) Run(ctx context.Context, stmt graph.Statement) (graph.Cursor, error) {
	s.count++
	s.queries.Add(ctx, 1, metric.WithAttributes(attribute.String("statement", string(stmt.Kind))))

	c, err := s.inner.Run(ctx, stmt)
	if err != nil {
		return nil, queryError(stmt, err)
	}
	return &cursor{Cursor: c, stmt: stmt}, nil
}

type cursor struct {
	graph.Cursor
	stmt graph.Statement
}

func (c *cursor) Err() error {
	if err := c.Cursor.Err(); err != nil {
		return queryError(c.stmt, err)
	}
	return nil
}

func queryError(stmt graph.Statement, err error) error {
	if errors.Is(err, ErrGraphQueryFailed) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrGraphQueryFailed, stmt.Kind, err)
}
