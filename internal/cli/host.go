package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ntoofu/neo4j-ansible-inventory/cache"
)

// NewHostCommand creates the host command, the subcommand form of --host.
func NewHostCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "host <name>",
		Short:         "Print the variables of one host as JSON",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd, app, rootOpts, args[0])
		},
	}
}

func runHost(cmd *cobra.Command, app *App, rootOpts *RootOptions, host string) error {
	ctx := cmd.Context()

	e, err := newEnv(app, rootOpts)
	if err != nil {
		return err
	}
	r, err := e.reconstructor()
	if err != nil {
		return err
	}

	data, err := e.cached(ctx, cache.HostKey(e.cfg.Cache.GetPrefix(), e.def, host), func() ([]byte, error) {
		g, err := e.openGraph(ctx, false)
		if err != nil {
			return nil, err
		}
		defer e.closeGraph(ctx, g)

		vars, err := r.HostVars(ctx, g, host)
		if err != nil {
			return nil, err
		}
		return json.Marshal(vars)
	})
	if err != nil {
		return err
	}
	return writeLine(cmd.OutOrStdout(), data)
}
