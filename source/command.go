package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultInventoryCommand is the binary FromAnsible runs when none is set.
const DefaultInventoryCommand = "ansible-inventory"

// CommandConfig configures an ansible-inventory run.
type CommandConfig struct {
	// Command is the binary to run. Defaults to DefaultInventoryCommand.
	Command string

	// Inventory is the -i argument: a file, directory, or comma list.
	Inventory string

	// VaultPasswordFile is passed as --vault-password-file when set.
	VaultPasswordFile string

	// PlaybookDir is passed as --playbook-dir when set, which controls
	// where group_vars/ and host_vars/ are looked up.
	PlaybookDir string

	// WorkDir is the working directory for the command (optional)
	WorkDir string

	// Env specifies the environment in "KEY=value" form. nil inherits the
	// parent environment.
	Env []string

	// Timeout bounds the run. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// Args returns the command-line arguments for cfg.
func (cfg CommandConfig) Args() []string {
	args := []string{"-i", cfg.Inventory, "--list"}
	if cfg.VaultPasswordFile != "" {
		args = append(args, "--vault-password-file", cfg.VaultPasswordFile)
	}
	if cfg.PlaybookDir != "" {
		args = append(args, "--playbook-dir", cfg.PlaybookDir)
	}
	return args
}

// commandResult holds the captured output of one run.
type commandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// FromAnsible runs `ansible-inventory -i <inventory> --list` and loads its
// output. Ansible resolves group_vars, host_vars, vault and plugins, so the
// result matches what a playbook run would see.
func FromAnsible(ctx context.Context, cfg CommandConfig) (*Inventory, error) {
	if cfg.Inventory == "" {
		return nil, errors.New("inventory path is required")
	}
	command := cfg.Command
	if command == "" {
		command = DefaultInventoryCommand
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("binary %q not found in PATH: %w", command, err)
	}

	res, err := runCommand(ctx, command, cfg)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited with code %d: %s", command, res.ExitCode, bytes.TrimSpace(res.Stderr))
	}

	return LoadJSON(bytes.NewReader(res.Stdout))
}

// runCommand executes the binary and captures its output. A non-zero exit
// code is reported in the result, not as an error.
func runCommand(ctx context.Context, command string, cfg CommandConfig) (*commandResult, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command, cfg.Args()...)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &commandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%s timed out after %v", command, cfg.Timeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return res, fmt.Errorf("%s cancelled", command)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to run %s: %w", command, err)
	}

	return res, nil
}
