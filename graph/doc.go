// Package graph defines the property-graph side of the inventory mapping:
// the node and relationship model, the Session and Cursor contracts the
// mapping engine talks to, and the closed catalogue of statements it issues.
//
// # Statements
//
// The engine never composes free-form queries. Every statement is built by a
// constructor in this package (FindNodes, CreateNode, OwnedChildren, ...) and
// carries three things:
//
//   - Kind: the statement shape, so non-Cypher backends (graphtest) can
//     interpret it without parsing text
//   - Cypher and Params: what a Neo4j session executes
//   - Schema: the labels and relationship types spliced into the Cypher text
//
// Labels and relationship types are schema identifiers and are used verbatim.
// They are back-quoted when spliced, never passed as parameters, because
// Cypher does not accept parameters in label or type position.
//
// # Values
//
// Neo4j returns every integer as int64 and every float as float64, and lists
// and maps as []any and map[string]any. Normalize converts Go values into that
// shape before they are written so that what is read back compares equal to
// what was stored.
package graph
