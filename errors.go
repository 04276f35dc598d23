package ansiblegraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
	"github.com/ntoofu/neo4j-ansible-inventory/naming"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
	"github.com/ntoofu/neo4j-ansible-inventory/varrule"
)

// Sentinel errors for mapping operations.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrRepresentingNodeNotFound indicates that no node carries the
	// configured representing label and name, so there is no stored
	// inventory to read.
	ErrRepresentingNodeNotFound = errors.New("representing node not found")

	// ErrRepresentingNodeAmbiguous indicates that more than one node carries
	// the configured representing label and name. Nothing is read or
	// written when this is returned.
	ErrRepresentingNodeAmbiguous = errors.New("representing node is ambiguous")

	// ErrHostNotFound indicates that no containment path leads from the
	// "all" group to the requested host.
	ErrHostNotFound = errors.New("host not found")

	// ErrGraphQueryFailed wraps every error reported by a graph session.
	// The statement kind is part of the message.
	//
	// Example:
	//	_, err := reconstructor.List(ctx, session)
	//	if errors.Is(err, ansiblegraph.ErrGraphQueryFailed) {
	//	    // transient, safe to retry the whole call
	//	}
	ErrGraphQueryFailed = errors.New("graph query failed")

	// ErrLossySanitization marks a variable value that could not be stored
	// structurally and was converted to text. It is logged and reported in
	// StoreReport, never returned.
	ErrLossySanitization = errors.New("variable value sanitized to text")

	// ErrCyclicContainment indicates that group containment edges in the
	// graph form a cycle.
	ErrCyclicContainment = errors.New("cyclic containment")

	// ErrMultipleLabels indicates a stored inventory node with more or fewer
	// than exactly one label, whose type therefore cannot be recovered.
	ErrMultipleLabels = errors.New("node must have exactly one label")

	// ErrDuplicateNode indicates two stored inventory nodes of the same kind
	// sharing one name.
	ErrDuplicateNode = errors.New("duplicate inventory node")

	// ErrInvalidDefinition indicates an unusable Definition.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrInvalidInventory indicates an inventory that cannot be stored.
	ErrInvalidInventory = source.ErrInvalidInventory
)

// Error kinds categorize errors by how a caller should react.
const (
	// KindConfiguration covers a missing or ambiguous representing node and
	// invalid definitions. Retrying will not help.
	KindConfiguration = "configuration"

	// KindNotFound covers lookups of a host that is not stored.
	KindNotFound = "not_found"

	// KindQuery covers graph session failures, usually transient I/O.
	KindQuery = "query"

	// KindValidation covers inventories or stored graphs that break the
	// mapping's structural rules.
	KindValidation = "validation"

	// KindInternal covers everything else.
	KindInternal = "internal"
)

// Error is the structured error returned by Store, List and HostVars.
//
// Error supports errors.Is and errors.As, both on the underlying sentinel
// and on another *Error carrying the same Kind:
//
//	if errors.Is(err, &ansiblegraph.Error{Kind: ansiblegraph.KindQuery}) {
//		// retry
//	}
type Error struct {
	// Op is the operation that failed (e.g. "Materializer.Store").
	Op string

	// Kind categorizes the error (e.g. KindQuery).
	Kind string

	// Err is the underlying error.
	Err error

	// Context carries debugging details such as the representing node or
	// the host name (optional).
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ansiblegraph: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("ansiblegraph: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("ansiblegraph: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind (and Op, when the target sets it), or
// delegates to the underlying error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind && (t.Op == "" || e.Op == t.Op) {
			return true
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into its Context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	n := *e
	n.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		n.Context[k] = v
	}
	for k, v := range ctx {
		n.Context[k] = v
	}
	return &n
}

// IsRetryable reports whether err came from the graph session rather than
// from configuration or data. There is no retry inside this package.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindQuery
	}
	return errors.Is(err, ErrGraphQueryFailed)
}

// wrapError classifies err and wraps it for op. An *Error is returned as is.
func wrapError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Op: op, Kind: kindOf(err), Err: err}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrGraphQueryFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindQuery
	case errors.Is(err, ErrHostNotFound):
		return KindNotFound
	case errors.Is(err, ErrRepresentingNodeNotFound),
		errors.Is(err, ErrRepresentingNodeAmbiguous),
		errors.Is(err, ErrInvalidDefinition),
		errors.Is(err, naming.ErrUnsupportedObjectKind),
		errors.Is(err, varrule.ErrInvalidPattern),
		errors.Is(err, varrule.ErrInvalidExpression),
		errors.Is(err, varrule.ErrInvalidExtractor),
		errors.Is(err, varrule.ErrUnknownExtractor):
		return KindConfiguration
	case errors.Is(err, ErrInvalidInventory),
		errors.Is(err, ErrCyclicContainment),
		errors.Is(err, ErrMultipleLabels),
		errors.Is(err, ErrDuplicateNode),
		errors.Is(err, varrule.ErrMalformedVariable),
		errors.Is(err, varrule.ErrNodeNotFound),
		errors.Is(err, graph.ErrUnexpectedResult):
		return KindValidation
	default:
		return KindInternal
	}
}

// CloseWithLog closes closer and logs a failure at warning level. It is
// meant for defer statements. A nil logger uses slog.Default().
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
