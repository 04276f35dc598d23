package graph

import "errors"

// Sentinel errors for graph sessions.
var (
	// ErrUnexpectedResult indicates a result row is missing a column or a
	// column holds a value of the wrong type.
	ErrUnexpectedResult = errors.New("unexpected result shape")

	// ErrUnsupportedStatement is returned by sessions that cannot interpret
	// a statement kind.
	ErrUnsupportedStatement = errors.New("unsupported statement")
)
