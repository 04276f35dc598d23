package graph

import (
	"context"
)

// Record is one result row keyed by column name.
type Record map[string]any

// Cursor iterates the rows of one statement result.
type Cursor interface {
	// Next advances to the next row. It returns false when the rows are
	// exhausted or an error occurred; check Err afterwards.
	Next(ctx context.Context) bool

	// Record returns the current row.
	Record() Record

	// Peek returns the next row without consuming it.
	Peek(ctx context.Context) (Record, bool)

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the cursor. Safe to call more than once.
	Close(ctx context.Context) error
}

// Session runs catalogue statements against a graph store. A Session is not
// safe for concurrent use; callers serialize statements on one session.
type Session interface {
	Run(ctx context.Context, stmt Statement) (Cursor, error)
}

// Collect drains a cursor into a slice and closes it.
func Collect(ctx context.Context, c Cursor) ([]Record, error) {
	defer c.Close(ctx)

	var rows []Record
	for c.Next(ctx) {
		rows = append(rows, c.Record())
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Exec runs a statement and discards its rows.
func Exec(ctx context.Context, s Session, stmt Statement) error {
	c, err := s.Run(ctx, stmt)
	if err != nil {
		return err
	}
	_, err = Collect(ctx, c)
	return err
}

// Query runs a statement and returns all of its rows.
func Query(ctx context.Context, s Session, stmt Statement) ([]Record, error) {
	c, err := s.Run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, c)
}

// SliceCursor is a Cursor over rows already in memory.
type SliceCursor struct {
	rows []Record
	pos  int
	err  error
}

// NewSliceCursor returns a cursor over rows.
func NewSliceCursor(rows []Record) *SliceCursor {
	return &SliceCursor{rows: rows, pos: -1}
}

// Next implements Cursor.
func (c *SliceCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

// Record implements Cursor.
func (c *SliceCursor) Record() Record {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil
	}
	return c.rows[c.pos]
}

// Peek implements Cursor.
func (c *SliceCursor) Peek(context.Context) (Record, bool) {
	if c.pos+1 >= len(c.rows) {
		return nil, false
	}
	return c.rows[c.pos+1], true
}

// Err implements Cursor.
func (c *SliceCursor) Err() error { return c.err }

// Close implements Cursor.
func (c *SliceCursor) Close(context.Context) error { return nil }
