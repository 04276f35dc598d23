package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	ansiblegraph "github.com/ntoofu/neo4j-ansible-inventory"
	"github.com/ntoofu/neo4j-ansible-inventory/config"
	"github.com/ntoofu/neo4j-ansible-inventory/health"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	AnsibleCommand string
}

// NewCheckCommand creates the check command.
func NewCheckCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the configuration, Neo4j, the cache and ansible-inventory",
		Long: `Check every dependency and print a JSON health report. The report
also lists the compiled definition and its variable rules.

The command fails when a check is unhealthy. A graph without a stored
inventory, a missing default config file or a missing ansible-inventory
binary only degrade the report.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, app, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.AnsibleCommand, "ansible-command", source.DefaultInventoryCommand, "ansible-inventory executable")

	return cmd
}

func runCheck(cmd *cobra.Command, app *App, rootOpts *RootOptions, opts *CheckOptions) error {
	ctx := cmd.Context()

	e, err := newEnv(app, rootOpts)
	if err != nil {
		return err
	}

	checks := map[string]health.Status{
		"config":            checkConfigFile(rootOpts.ConfigPath),
		"definition":        checkDefinition(e.def),
		"neo4j":             e.checkGraph(ctx),
		"ansible-inventory": optional(health.BinaryCheck(opts.AnsibleCommand)),
	}
	if !rootOpts.NoCache && e.cfg.Cache.Enabled() {
		checks["cache"] = e.checkCache(ctx)
	}

	report := health.Combine(checks)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := writeLine(cmd.OutOrStdout(), data); err != nil {
		return err
	}

	if report.IsUnhealthy() {
		return fmt.Errorf("%w: %s", health.ErrUnhealthy, report.Message)
	}
	return nil
}

func checkConfigFile(path string) health.Status {
	if path != "" {
		return health.FileCheck(path)
	}
	status := health.FileCheck(config.DefaultPath)
	if status.IsUnhealthy() {
		return health.Degraded("no config file, using defaults", status.Details)
	}
	return status
}

// checkDefinition reports the compiled schema and variable rules, in the
// order they apply.
func checkDefinition(def *ansiblegraph.Definition) health.Status {
	matchers := def.Vars.Matchers()
	rules := make([]string, 0, len(matchers))
	for _, m := range matchers {
		rules = append(rules, m.String())
	}
	s := health.Healthy(def.String())
	s.Details = map[string]any{"vars_rules": rules}
	return s
}

// optional downgrades a failed check to degraded.
func optional(s health.Status) health.Status {
	if s.IsUnhealthy() {
		s.Status = health.StatusDegraded
	}
	return s
}

func (e *env) checkGraph(ctx context.Context) health.Status {
	g, err := e.openGraph(ctx, false)
	if err != nil {
		return health.Unhealthy("connection failed", map[string]any{"error": err.Error()})
	}
	defer e.closeGraph(ctx, g)
	return health.GraphCheck(ctx, g, e.def)
}

func (e *env) checkCache(ctx context.Context) health.Status {
	if e.app.OpenCache == nil {
		return health.Unhealthy("no cache opener", nil)
	}
	c, err := e.app.OpenCache(e.cfg.Cache)
	if err != nil {
		return health.Unhealthy("connection failed", map[string]any{"error": err.Error()})
	}
	defer ansiblegraph.CloseWithLog(c, e.logger, "cache")

	if p, ok := c.(health.Pinger); ok {
		return health.PingCheck(ctx, p)
	}
	return health.Healthy("connected")
}
