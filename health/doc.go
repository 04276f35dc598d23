// Package health checks the dependencies of neo4j-inventory: the Neo4j
// graph holding the inventory, the optional Redis listing cache, the
// ansible-inventory binary used by store, and files such as the
// configuration.
//
// # Health Check Functions
//
//   - BinaryCheck: Verify a binary exists in PATH
//   - FileCheck: Verify a file or directory exists
//   - GraphCheck: Verify the representing node of an inventory can be found
//   - PingCheck: Verify a cache answers
//   - Combine: Aggregate named checks into a single report
//
// # Usage Example
//
//	report := health.Combine(map[string]health.Status{
//	    "config":            health.FileCheck("config.yml"),
//	    "ansible-inventory": health.BinaryCheck("ansible-inventory"),
//	    "neo4j":             health.GraphCheck(ctx, session, def),
//	})
//	if report.IsUnhealthy() {
//	    os.Exit(1)
//	}
//
// # Status Priority
//
// Combine reports unhealthy if any check is unhealthy, degraded if any check
// is degraded, and healthy otherwise. A graph without a stored inventory is
// degraded: the connection works but list and host will fail until store
// has run.
package health
