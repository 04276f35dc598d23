package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"

	ansiblegraph "github.com/ntoofu/neo4j-ansible-inventory"
	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// Health status constants represent the operational state of a dependency.
const (
	// StatusHealthy indicates the dependency is fully operational.
	StatusHealthy = "healthy"

	// StatusDegraded indicates the dependency works but something is missing.
	StatusDegraded = "degraded"

	// StatusUnhealthy indicates the dependency is not operational.
	StatusUnhealthy = "unhealthy"
)

// Status represents the health state of one dependency.
type Status struct {
	// Status is the current health state (healthy, degraded, or unhealthy).
	Status string `json:"status"`

	// Message provides a human-readable description of the health status.
	Message string `json:"message,omitempty"`

	// Details contains additional diagnostic information.
	Details map[string]any `json:"details,omitempty"`
}

// IsHealthy returns true if the status is StatusHealthy.
func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

// IsDegraded returns true if the status is StatusDegraded.
func (s Status) IsDegraded() bool {
	return s.Status == StatusDegraded
}

// IsUnhealthy returns true if the status is StatusUnhealthy.
func (s Status) IsUnhealthy() bool {
	return s.Status == StatusUnhealthy
}

// Healthy creates a healthy status.
func Healthy(message string) Status {
	return Status{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded status with optional details.
func Degraded(message string, details map[string]any) Status {
	return Status{Status: StatusDegraded, Message: message, Details: details}
}

// Unhealthy creates an unhealthy status with optional details.
func Unhealthy(message string, details map[string]any) Status {
	return Status{Status: StatusUnhealthy, Message: message, Details: details}
}

// BinaryCheck verifies that a binary exists and is executable in the system PATH.
//
// Example:
//
//	status := health.BinaryCheck("ansible-inventory")
//	if status.IsUnhealthy() {
//	    log.Fatal("store --ansible-inventory needs ansible-inventory")
//	}
func BinaryCheck(name string) Status {
	if name == "" {
		return Unhealthy("binary name cannot be empty", nil)
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("binary '%s' not found in PATH", name),
			map[string]any{
				"binary": name,
				"error":  err.Error(),
			},
		)
	}

	return Healthy(fmt.Sprintf("binary '%s' found at %s", name, path))
}

// FileCheck verifies that a file or directory exists at the specified path.
func FileCheck(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unhealthy(
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{"path": path},
			)
		}

		return Unhealthy(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}

	return Healthy(fmt.Sprintf("%s '%s' exists", fileType, path))
}

// GraphCheck looks up the representing node of def. One match is healthy,
// none is degraded, and several matches or a query error are unhealthy.
func GraphCheck(ctx context.Context, s graph.Session, def *ansiblegraph.Definition) Status {
	if s == nil || def == nil {
		return Unhealthy("graph session and definition are required", nil)
	}

	details := map[string]any{
		"label": def.RepresentingLabel,
		"name":  def.RepresentingName,
	}

	rows, err := graph.Query(ctx, s, graph.FindNodes(def.RepresentingLabel, def.RepresentingName))
	if err != nil {
		details["error"] = err.Error()
		return Unhealthy("graph query failed", details)
	}

	switch len(rows) {
	case 0:
		return Degraded("no inventory stored yet", details)
	case 1:
		return Healthy(fmt.Sprintf("inventory %q is stored", def.RepresentingName))
	default:
		details["matches"] = len(rows)
		return Unhealthy(ansiblegraph.ErrRepresentingNodeAmbiguous.Error(), details)
	}
}

// Pinger is anything that can confirm it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck verifies that p answers. A nil p means the dependency is not
// configured, which is healthy.
func PingCheck(ctx context.Context, p Pinger) Status {
	if p == nil {
		return Healthy("not configured")
	}
	if err := p.Ping(ctx); err != nil {
		return Unhealthy("ping failed", map[string]any{"error": err.Error()})
	}
	return Healthy("reachable")
}

// Report is the combined result of named checks.
type Report struct {
	Status
	Checks map[string]Status `json:"checks"`
}

// Combine aggregates named health checks into a single report.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
func Combine(checks map[string]Status) Report {
	report := Report{Checks: checks}
	if len(checks) == 0 {
		report.Status = Healthy("no checks provided")
		return report
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, name := range names {
		switch checks[name].Status {
		case StatusUnhealthy:
			unhealthyChecks = append(unhealthyChecks, name)
		case StatusDegraded:
			degradedChecks = append(degradedChecks, name)
		case StatusHealthy:
			healthyCount++
		}
	}

	switch {
	case len(unhealthyChecks) > 0:
		report.Status = Unhealthy(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	case len(degradedChecks) > 0:
		report.Status = Degraded(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	default:
		report.Status = Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
	}
	return report
}

// ErrUnhealthy is returned by commands whose health report is unhealthy.
var ErrUnhealthy = errors.New("unhealthy")
