package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ntoofu/neo4j-ansible-inventory/cache"
)

// NewListCommand creates the list command, the subcommand form of --list.
func NewListCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "Print the stored inventory as dynamic inventory JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, app, rootOpts)
		},
	}
}

func runList(cmd *cobra.Command, app *App, rootOpts *RootOptions) error {
	ctx := cmd.Context()

	e, err := newEnv(app, rootOpts)
	if err != nil {
		return err
	}
	r, err := e.reconstructor()
	if err != nil {
		return err
	}

	data, err := e.cached(ctx, cache.ListKey(e.cfg.Cache.GetPrefix(), e.def), func() ([]byte, error) {
		g, err := e.openGraph(ctx, false)
		if err != nil {
			return nil, err
		}
		defer e.closeGraph(ctx, g)

		listing, err := r.List(ctx, g)
		if err != nil {
			return nil, err
		}
		return json.Marshal(listing)
	})
	if err != nil {
		return err
	}
	return writeLine(cmd.OutOrStdout(), data)
}
