// Package cli implements the neo4j-inventory command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ntoofu/neo4j-ansible-inventory/source"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	NoCache    bool

	// List and Host implement Ansible's inventory script protocol on the
	// root command.
	List bool
	Host string
}

// App carries the process streams and the factories commands use to reach
// Neo4j, Redis and ansible-inventory. Tests replace the factories.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// IsTerminal reports whether a password can be prompted for.
	IsTerminal func() bool

	// ReadPassword reads a password without echo.
	ReadPassword func() ([]byte, error)

	OpenGraph   GraphOpener
	OpenCache   CacheOpener
	FromAnsible func(ctx context.Context, cfg source.CommandConfig) (*source.Inventory, error)
}

// NewApp returns an App wired to the real process environment.
func NewApp() *App {
	fd := int(os.Stdin.Fd())
	return &App{
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		IsTerminal:   func() bool { return term.IsTerminal(fd) },
		ReadPassword: func() ([]byte, error) { return term.ReadPassword(fd) },
		OpenGraph:    OpenNeo4j,
		OpenCache:    OpenRedis,
		FromAnsible:  source.FromAnsible,
	}
}

// NewRootCommand creates the root command.
func NewRootCommand(app *App) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "neo4j-inventory",
		Short: "Ansible inventory stored in Neo4j",
		Long: `Store an Ansible inventory in a Neo4j graph and serve it back as a
dynamic inventory.

Used as an inventory script, Ansible calls it with --list or --host NAME:

  ansible-playbook -i neo4j-inventory site.yml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.List && opts.Host != "":
				return errors.New("--list and --host cannot be combined")
			case opts.List:
				return runList(cmd, app, opts)
			case opts.Host != "":
				return runHost(cmd, app, opts, opts.Host)
			default:
				return cmd.Help()
			}
		},
	}

	cmd.SetIn(app.Stdin)
	cmd.SetOut(app.Stdout)
	cmd.SetErr(app.Stderr)

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default config.yml)")
	cmd.PersistentFlags().BoolVar(&opts.NoCache, "no-cache", false, "bypass the Redis listing cache")

	cmd.Flags().BoolVarP(&opts.List, "list", "l", false, "print the whole inventory as JSON")
	cmd.Flags().StringVarP(&opts.Host, "host", "H", "", "print the variables of one host as JSON")

	// Add subcommands
	cmd.AddCommand(NewStoreCommand(app, opts))
	cmd.AddCommand(NewListCommand(app, opts))
	cmd.AddCommand(NewHostCommand(app, opts))
	cmd.AddCommand(NewCheckCommand(app, opts))

	return cmd
}

// Execute runs the root command and prints any error on stderr.
func Execute(ctx context.Context, app *App, args []string) int {
	cmd := NewRootCommand(app)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(app.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
