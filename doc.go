// Package ansiblegraph keeps an Ansible inventory and a Neo4j property graph
// in sync, in both directions.
//
// A Materializer flattens an inventory into the graph:
//
//	def := ansiblegraph.DefaultDefinition()
//	m, err := ansiblegraph.NewMaterializer(def, ansiblegraph.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	report, err := m.Store(ctx, session, inv)
//
// and a Reconstructor rebuilds the dynamic inventory document from it:
//
//	r, err := ansiblegraph.NewReconstructor(def)
//	listing, err := r.List(ctx, session)
//	out, err := json.Marshal(listing)
//
// # Graph layout
//
// Every group and host becomes one node labelled by the Definition's naming
// rule (ANSIBLE_GROUP / ANSIBLE_HOST by default) carrying its name in the
// reserved "name" property. Nodes of one inventory are owned by a single
// representing node, (:SCRIPT {name: "ansible"}) by default, through USE
// edges, so several inventories can share a database. Groups point at child
// groups and member hosts through HAS edges.
//
// Scalar variables are node properties. A nested map is stored in a
// property-bag node (ANSIBLE_VARS) reached through an edge typed with the
// variable name; a list of maps uses one bag per element and an "index"
// property on each edge. Bags with identical content written in one Store
// call are shared. Other composite values are converted to text and
// reported in StoreReport.
//
// # Errors
//
// Store, List and HostVars return *Error. Its Kind separates configuration
// problems (KindConfiguration) from graph I/O failures (KindQuery, see
// IsRetryable), structural problems (KindValidation) and unknown hosts
// (KindNotFound).
package ansiblegraph
