// Package sandbox wraps the container-use CLI that isolates agent workloads.
//
// Every agent command executes inside an isolated container environment tied
// to a dedicated git branch, opened with:
//
//	cu environment open --branch <branch> -- sh -c <command>
//
// The child's stdout and stderr are inherited from the parent process so
// long-running output streams straight to the terminal instead of being
// buffered in memory. Availability of the external tool is probed once per
// process with "cu --version" and the result is cached for the lifetime of
// the runner.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/logging"
)

// DefaultTool is the sandbox CLI invoked when none is configured.
const DefaultTool = "cu"

// termGracePeriod is how long a canceled command gets to exit after SIGTERM
// before it is force-killed.
const termGracePeriod = 5 * time.Second

// execLookPath is overridable in tests.
var execLookPath = exec.LookPath

// Runner executes commands inside isolated sandbox environments.
type Runner interface {
	// Probe verifies that the sandbox tool is installed and responsive.
	Probe() error
	// Run executes command on the given branch's environment and blocks
	// until the command exits or ctx is canceled.
	Run(ctx context.Context, branch, command string) error
}

// CLIRunner implements Runner by shelling out to the container-use CLI.
type CLIRunner struct {
	tool   string
	logger *logging.Logger

	probeOnce sync.Once
	probeErr  error
}

var _ Runner = (*CLIRunner)(nil)

// NewCLIRunner creates a runner for the given sandbox tool. An empty tool
// falls back to DefaultTool; a nil logger discards runner output.
func NewCLIRunner(tool string, logger *logging.Logger) *CLIRunner {
	if tool == "" {
		tool = DefaultTool
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CLIRunner{
		tool:   tool,
		logger: logger.WithComponent("sandbox"),
	}
}

// Tool returns the name of the wrapped sandbox CLI.
func (r *CLIRunner) Tool() string {
	return r.tool
}

// Probe checks that the sandbox tool is on PATH and answers a version query.
// The check runs once per runner; subsequent calls return the cached result.
func (r *CLIRunner) Probe() error {
	r.probeOnce.Do(func() {
		path, err := execLookPath(r.tool)
		if err != nil {
			r.probeErr = errors.NewSandboxError("tool not found in PATH", errors.ErrSandboxUnavailable).
				WithTool(r.tool)
			return
		}

		output, err := exec.Command(r.tool, "--version").CombinedOutput()
		if err != nil {
			r.probeErr = errors.NewSandboxError(
				fmt.Sprintf("version probe failed: %s", firstLine(output)),
				errors.ErrSandboxUnavailable,
			).WithTool(r.tool)
			return
		}

		r.logger.Debug("sandbox tool available",
			"tool", r.tool,
			"path", path,
			"version", firstLine(output))
	})
	return r.probeErr
}

// Run opens a sandbox environment on branch and executes command inside it
// via "sh -c". It blocks until the command exits. Canceling ctx sends the
// child SIGTERM and escalates to SIGKILL after a grace period; in that case
// Run returns the context's error rather than a sandbox failure.
//
// Callers are expected to Probe before the first Run.
func (r *CLIRunner) Run(ctx context.Context, branch, command string) error {
	if branch == "" {
		return errors.NewSandboxError("branch required", errors.ErrInvalidInput).
			WithTool(r.tool)
	}
	if command == "" {
		return errors.NewSandboxError("command required", errors.ErrInvalidInput).
			WithTool(r.tool).
			WithBranch(branch)
	}

	cmd := exec.CommandContext(ctx, r.tool, CommandArgs(branch, command)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = termGracePeriod

	r.logger.Debug("starting sandboxed command",
		"tool", r.tool,
		"branch", branch,
		"command", command)

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.Debug("sandboxed command canceled", "branch", branch)
		return ctxErr
	}
	if err == nil {
		r.logger.Debug("sandboxed command finished", "branch", branch)
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.NewSandboxError("command exited non-zero", errors.ErrSandboxExited).
			WithTool(r.tool).
			WithBranch(branch).
			WithExitCode(exitErr.ExitCode())
	}
	return errors.NewSandboxError("failed to run sandbox tool", err).
		WithTool(r.tool).
		WithBranch(branch)
}

// CommandArgs returns the argument vector (excluding the tool itself) that
// opens a sandbox environment on branch and runs command inside it. Use this
// when the command line needs to be built or displayed elsewhere.
func CommandArgs(branch, command string) []string {
	return []string{"environment", "open", "--branch", branch, "--", "sh", "-c", command}
}

// firstLine trims output to its first non-empty line for log and error
// messages.
func firstLine(output []byte) string {
	s := strings.TrimSpace(string(output))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
