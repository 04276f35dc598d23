package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	ansiblegraph "github.com/ntoofu/neo4j-ansible-inventory"
	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// StoreOptions holds flags for the store command.
type StoreOptions struct {
	// Inventory is a YAML inventory or a JSON dynamic inventory document.
	Inventory string

	// AnsibleInventory is any inventory source ansible-inventory accepts.
	AnsibleInventory  string
	AnsibleCommand    string
	VaultPasswordFile string
	PlaybookDir       string
}

// NewStoreCommand creates the store command.
func NewStoreCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Replace the stored inventory",
		Long: `Replace the inventory stored under the configured representing node.

The inventory is read from a file (-i) or resolved by ansible-inventory
(--ansible-inventory), which handles plugins, group_vars and vault. A JSON
report of what was written is printed on stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(cmd, app, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Inventory, "inventory", "i", "", "inventory file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.AnsibleInventory, "ansible-inventory", "", "inventory source resolved with ansible-inventory")
	cmd.Flags().StringVar(&opts.AnsibleCommand, "ansible-command", source.DefaultInventoryCommand, "ansible-inventory executable")
	cmd.Flags().StringVar(&opts.VaultPasswordFile, "vault-password-file", "", "vault password file passed to ansible-inventory")
	cmd.Flags().StringVar(&opts.PlaybookDir, "playbook-dir", "", "playbook directory passed to ansible-inventory")
	cmd.MarkFlagsMutuallyExclusive("inventory", "ansible-inventory")
	cmd.MarkFlagsOneRequired("inventory", "ansible-inventory")

	return cmd
}

func runStore(cmd *cobra.Command, app *App, rootOpts *RootOptions, opts *StoreOptions) error {
	ctx := cmd.Context()

	e, err := newEnv(app, rootOpts)
	if err != nil {
		return err
	}

	var inv *source.Inventory
	switch {
	case opts.Inventory != "":
		inv, err = source.LoadFile(opts.Inventory)
	case opts.AnsibleInventory != "":
		if app.FromAnsible == nil {
			return errors.New("ansible-inventory is not available")
		}
		inv, err = app.FromAnsible(ctx, source.CommandConfig{
			Command:           opts.AnsibleCommand,
			Inventory:         opts.AnsibleInventory,
			VaultPasswordFile: opts.VaultPasswordFile,
			PlaybookDir:       opts.PlaybookDir,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}

	m, err := ansiblegraph.NewMaterializer(e.def, ansiblegraph.WithLogger(e.logger))
	if err != nil {
		return err
	}

	g, err := e.openGraph(ctx, true)
	if err != nil {
		return err
	}
	defer e.closeGraph(ctx, g)

	// a failed store may already have replaced part of the graph
	defer e.invalidate(ctx)

	report, err := m.Store(ctx, g, inv)
	if err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return writeLine(cmd.OutOrStdout(), data)
}
