// Package checkpoint saves and restores snapshots of agent branches.
//
// A checkpoint is an ordinary commit on the agent's branch marked with an
// annotated tag named cp/<agent-id>/<uuid>. Saving commits everything in the
// working tree (untracked files included) so the snapshot is always a real
// commit; restoring creates a fresh branch at the tagged commit without
// touching the branch the checkpoint came from, so several agents can fork
// from the same snapshot.
//
// This file provides the concrete CLI executor used in production; the
// CommandExecutor interface allows mock implementations in tests.
package checkpoint

import (
	"os/exec"
	"strings"
)

// CommandExecutor abstracts command execution for testability.
// This allows tests to mock git commands without executing them.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command and returns only the error.
	RunQuiet(dir string, name string, args ...string) error
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLICommandExecutor) RunQuiet(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}

var _ CommandExecutor = (*CLICommandExecutor)(nil)

// isNotRepository reports whether git output indicates the directory is not
// inside a git repository.
func isNotRepository(output []byte) bool {
	return strings.Contains(string(output), "not a git repository")
}
