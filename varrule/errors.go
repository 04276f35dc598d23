package varrule

import "errors"

var (
	// ErrInvalidPattern indicates a matcher name or label pattern that does
	// not compile. It is returned when the matcher is built, never on lookup.
	ErrInvalidPattern = errors.New("invalid matcher pattern")

	// ErrInvalidExpression indicates a matcher expression that does not
	// compile or does not evaluate to a bool.
	ErrInvalidExpression = errors.New("invalid matcher expression")

	// ErrUnknownExtractor is returned by Lookup for an unregistered
	// extractor name.
	ErrUnknownExtractor = errors.New("unknown extractor")

	// ErrInvalidExtractor indicates an extractor missing one of its sides.
	ErrInvalidExtractor = errors.New("invalid extractor")

	// ErrNodeNotFound is returned by Reader when a node id has no node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrMalformedVariable indicates variable edges that cannot be
	// reassembled, such as one key used by both indexed and unindexed edges.
	ErrMalformedVariable = errors.New("malformed variable edges")
)
