package sandbox

import (
	"context"
	"os/exec"
	"testing"

	"github.com/RyanLisse/opencode-rs/internal/errors"
)

func TestDefaultTool(t *testing.T) {
	if DefaultTool != "cu" {
		t.Errorf("DefaultTool = %q, want %q", DefaultTool, "cu")
	}
}

func TestNewCLIRunner(t *testing.T) {
	r := NewCLIRunner("", nil)
	if r.Tool() != DefaultTool {
		t.Errorf("Tool() = %q, want %q", r.Tool(), DefaultTool)
	}

	r = NewCLIRunner("podman-use", nil)
	if r.Tool() != "podman-use" {
		t.Errorf("Tool() = %q, want %q", r.Tool(), "podman-use")
	}
}

func TestCommandArgs(t *testing.T) {
	args := CommandArgs("agent/builder", "sleep infinity")

	expected := []string{"environment", "open", "--branch", "agent/builder", "--", "sh", "-c", "sleep infinity"}
	if len(args) != len(expected) {
		t.Fatalf("len(args) = %d, want %d: %v", len(args), len(expected), args)
	}

	for i, want := range expected {
		if args[i] != want {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want)
		}
	}
}

func TestCLIRunner_Probe_MissingTool(t *testing.T) {
	r := NewCLIRunner("opencode-test-no-such-tool", nil)

	err := r.Probe()
	if err == nil {
		t.Fatal("Probe() = nil, want error")
	}
	if !errors.Is(err, errors.ErrSandboxUnavailable) {
		t.Errorf("Probe() error = %v, want ErrSandboxUnavailable", err)
	}

	var sbErr *errors.SandboxError
	if !errors.As(err, &sbErr) {
		t.Fatalf("Probe() error type = %T, want *SandboxError", err)
	}
	if sbErr.Tool != "opencode-test-no-such-tool" {
		t.Errorf("Tool = %q, want %q", sbErr.Tool, "opencode-test-no-such-tool")
	}
}

func TestCLIRunner_Probe_Cached(t *testing.T) {
	calls := 0
	orig := execLookPath
	execLookPath = func(name string) (string, error) {
		calls++
		return "", exec.ErrNotFound
	}
	defer func() { execLookPath = orig }()

	r := NewCLIRunner("cu", nil)

	first := r.Probe()
	second := r.Probe()

	if calls != 1 {
		t.Errorf("lookup calls = %d, want 1", calls)
	}
	if first == nil || second == nil {
		t.Fatal("Probe() = nil, want cached error")
	}
	if first != second {
		t.Errorf("Probe() returned different errors across calls: %v vs %v", first, second)
	}
}

func TestCLIRunner_Probe_Success(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available in PATH")
	}

	r := NewCLIRunner("true", nil)
	if err := r.Probe(); err != nil {
		t.Errorf("Probe() = %v, want nil", err)
	}
}

func TestCLIRunner_Run_Validation(t *testing.T) {
	r := NewCLIRunner("cu", nil)
	ctx := context.Background()

	if err := r.Run(ctx, "", "sleep infinity"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Run with empty branch = %v, want ErrInvalidInput", err)
	}
	if err := r.Run(ctx, "agent/x", ""); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Run with empty command = %v, want ErrInvalidInput", err)
	}
}

func TestCLIRunner_Run_ContextCanceled(t *testing.T) {
	r := NewCLIRunner("cu", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, "agent/x", "sleep infinity")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run with canceled context = %v, want context.Canceled", err)
	}

	var sbErr *errors.SandboxError
	if errors.As(err, &sbErr) {
		t.Errorf("Run with canceled context returned SandboxError %v, want bare context error", err)
	}
}

func TestCLIRunner_Run_StartFailure(t *testing.T) {
	r := NewCLIRunner("opencode-test-no-such-tool", nil)

	err := r.Run(context.Background(), "agent/x", "sleep infinity")
	if err == nil {
		t.Fatal("Run() = nil, want error")
	}

	var sbErr *errors.SandboxError
	if !errors.As(err, &sbErr) {
		t.Fatalf("Run() error type = %T, want *SandboxError", err)
	}
	if errors.Is(err, errors.ErrSandboxExited) {
		t.Errorf("Run() start failure reported as non-zero exit: %v", err)
	}
	if sbErr.Branch != "agent/x" {
		t.Errorf("Branch = %q, want %q", sbErr.Branch, "agent/x")
	}
}

func TestCLIRunner_Run_Success(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available in PATH")
	}

	r := NewCLIRunner("true", nil)
	if err := r.Run(context.Background(), "agent/x", "noop"); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestCLIRunner_Run_NonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available in PATH")
	}

	r := NewCLIRunner("false", nil)

	err := r.Run(context.Background(), "agent/x", "noop")
	if !errors.Is(err, errors.ErrSandboxExited) {
		t.Fatalf("Run() = %v, want ErrSandboxExited", err)
	}

	var sbErr *errors.SandboxError
	if !errors.As(err, &sbErr) {
		t.Fatalf("Run() error type = %T, want *SandboxError", err)
	}
	if sbErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", sbErr.ExitCode)
	}
	if sbErr.Tool != "false" {
		t.Errorf("Tool = %q, want %q", sbErr.Tool, "false")
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"empty", "", ""},
		{"single line", "cu version 0.4.2", "cu version 0.4.2"},
		{"trailing newline", "cu version 0.4.2\n", "cu version 0.4.2"},
		{"multi line", "cu version 0.4.2\nbuilt 2024-11-02", "cu version 0.4.2"},
		{"surrounding space", "  cu version 0.4.2  \n", "cu version 0.4.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstLine([]byte(tt.output)); got != tt.want {
				t.Errorf("firstLine(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}
