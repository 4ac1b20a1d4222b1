// Package runner executes external commands such as package manager scripts.
package runner

import (
	"context"
	"os/exec"
)

// CommandRunner runs external commands. Tests substitute a fake.
type CommandRunner interface {
	// Run executes name with args in workDir and returns combined output.
	Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error)

	// RunShell executes command through "sh -c".
	RunShell(ctx context.Context, workDir string, command string) ([]byte, error)

	// LookPath reports whether an executable is available on PATH.
	LookPath(name string) bool
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct {
	// Env is appended to the process environment when non-empty.
	Env []string
}

func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	return cmd.CombinedOutput()
}

func (r *ExecRunner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	return r.Run(ctx, workDir, "sh", "-c", command)
}

func (r *ExecRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

var _ CommandRunner = (*ExecRunner)(nil)
